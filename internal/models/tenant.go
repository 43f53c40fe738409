package models

import "gorm.io/datatypes"

// Tenant 租户模型，slug 为唯一标识且创建后不可修改
type Tenant struct {
	BaseModel
	Slug         string         `json:"slug" gorm:"uniqueIndex;not null;size:64" validate:"required,max=64,slug"`
	Name         string         `json:"name" gorm:"not null;size:100" validate:"required,max=100"`
	Description  string         `json:"description" gorm:"size:500" validate:"max=500"`
	ContactEmail string         `json:"contact_email" gorm:"size:100" validate:"omitempty,email,max=100"`
	Settings     datatypes.JSON `json:"settings,omitempty"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}
