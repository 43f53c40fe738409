package services

import (
	"fmt"

	"tenancy/internal/models"
	"tenancy/pkg/config"
)

// MultitenancySettings 多租户设置（只读）
type MultitenancySettings struct {
	activated    bool
	requiredRole models.Role
}

// NewMultitenancySettings 从配置构造设置
func NewMultitenancySettings(cfg config.MultitenancyConfig) (*MultitenancySettings, error) {
	role, err := models.ParseRole(cfg.RequiredRole)
	if err != nil {
		return nil, fmt.Errorf("MULTITENANCY_REQUIRED_ROLE: %w", err)
	}
	return &MultitenancySettings{
		activated:    cfg.Activated,
		requiredRole: role,
	}, nil
}

// IsActivated 是否允许创建租户
func (s *MultitenancySettings) IsActivated() bool {
	return s.activated
}

// RequiredRoleForTenantCreation 创建租户所需角色
func (s *MultitenancySettings) RequiredRoleForTenantCreation() models.Role {
	return s.requiredRole
}
