package handlers

import (
	"time"

	"tenancy/internal/models"

	"gorm.io/datatypes"
)

// TenantRepresentation 租户对外表示
type TenantRepresentation struct {
	Href         string         `json:"href"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	ContactEmail string         `json:"contact_email,omitempty"`
	Settings     datatypes.JSON `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewTenantRepresentation 构造租户表示，nil 返回 nil
func NewTenantRepresentation(tenant *models.Tenant) *TenantRepresentation {
	if tenant == nil {
		return nil
	}
	return &TenantRepresentation{
		Href:         TenantsPath + "/" + tenant.Slug,
		Slug:         tenant.Slug,
		Name:         tenant.Name,
		Description:  tenant.Description,
		ContactEmail: tenant.ContactEmail,
		Settings:     tenant.Settings,
		CreatedAt:    tenant.CreatedAt,
	}
}

// UserRepresentation 用户对外表示，不含密码
type UserRepresentation struct {
	ID       uint          `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Global   bool          `json:"global"`
	Roles    []models.Role `json:"roles"`
}

// NewUserRepresentation 构造用户表示，nil 返回 nil
func NewUserRepresentation(user *models.User) *UserRepresentation {
	if user == nil {
		return nil
	}
	return &UserRepresentation{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Global:   user.IsGlobal,
		Roles:    user.RoleNames(),
	}
}

// UserAndTenant 当前用户与租户
type UserAndTenant struct {
	Tenant *TenantRepresentation `json:"tenant"`
	User   *UserRepresentation   `json:"user"`
}
