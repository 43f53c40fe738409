package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tenancy/internal/models"
	"tenancy/pkg/cache"
	"tenancy/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RoleCache 角色缓存
type RoleCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Gatekeeper 角色鉴权
type Gatekeeper struct {
	db    *gorm.DB
	cache RoleCache
	ttl   time.Duration
}

// NewGatekeeper 创建鉴权器，roleCache 可为 nil
func NewGatekeeper(db *gorm.DB, roleCache RoleCache, ttl time.Duration) *Gatekeeper {
	return &Gatekeeper{
		db:    db,
		cache: roleCache,
		ttl:   ttl,
	}
}

// UserHasRole 检查用户是否拥有角色。RoleNone 总是满足；查询失败视为无权限
func (g *Gatekeeper) UserHasRole(ctx context.Context, user *models.User, role models.Role) bool {
	if role == models.RoleNone {
		return true
	}
	if user == nil {
		return false
	}

	roles, err := g.RolesOf(ctx, user.ID)
	if err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"user": user.ID,
			"role": role,
		}).Errorf("role lookup failed: %v", err)
		return false
	}

	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RolesOf 获取用户角色，优先读缓存
func (g *Gatekeeper) RolesOf(ctx context.Context, userID uint) ([]models.Role, error) {
	key := "roles:" + strconv.FormatUint(uint64(userID), 10)

	if g.cache != nil {
		var cached []models.Role
		err := g.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.GetLogger().Warnf("role cache read failed for user %d: %v", userID, err)
		}
	}

	var rows []models.UserRole
	if err := g.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load roles of user %d: %w", userID, err)
	}

	roles := make([]models.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}

	if g.cache != nil {
		if err := g.cache.SetJSON(ctx, key, roles, g.ttl); err != nil {
			logger.GetLogger().Warnf("role cache write failed for user %d: %v", userID, err)
		}
	}
	return roles, nil
}
