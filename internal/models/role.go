package models

import (
	"fmt"
	"strings"
	"time"
)

// Role 角色
type Role string

// 系统预定义角色
const (
	RoleNone  Role = "none"  // 不需要任何角色
	RoleAdmin Role = "admin" // 管理员
)

// ParseRole 解析角色名称，大小写不敏感
func ParseRole(name string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(name))); role {
	case RoleNone, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", name)
	}
}

// UserRole 用户角色关联表
type UserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_role" json:"user_id"`
	Role      Role      `gorm:"not null;size:20;uniqueIndex:idx_user_role" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 表名
func (UserRole) TableName() string {
	return "user_roles"
}
