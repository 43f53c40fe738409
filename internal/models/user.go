package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型。全局用户不属于任何租户
type User struct {
	BaseModel
	TenantID     *uint      `json:"tenant_id,omitempty" gorm:"index"`
	Username     string     `json:"username" gorm:"uniqueIndex;not null;size:50" validate:"required,min=2,max=50,alphanum"`
	Email        string     `json:"email" gorm:"not null;size:100" validate:"required,email,max=100"`
	Password     string     `json:"-" gorm:"-" validate:"omitempty,min=6,max=72"`
	PasswordHash string     `json:"-" gorm:"not null;size:255"`
	IsGlobal     bool       `json:"global" gorm:"default:false"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	Tenant *Tenant    `json:"-" gorm:"foreignKey:TenantID"`
	Roles  []UserRole `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// RoleNames 返回已加载的角色列表
func (u *User) RoleNames() []Role {
	roles := make([]Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Role)
	}
	return roles
}
