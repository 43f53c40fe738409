package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenancy/internal/metrics"
	"tenancy/internal/models"
	"tenancy/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AccountsService 租户与用户管理
type AccountsService struct {
	db *gorm.DB
}

// NewAccountsService 创建账户服务
func NewAccountsService(db *gorm.DB) *AccountsService {
	return &AccountsService{
		db: db,
	}
}

// ========== 租户 ==========

// FindTenant 根据slug查找租户
func (s *AccountsService) FindTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityDoesNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant %s: %w", slug, err)
	}
	return &tenant, nil
}

// FindAllTenants 分页获取租户。offset 超出非空集合末尾时返回 ErrNoResult，
// 集合为空时返回空列表
func (s *AccountsService) FindAllTenants(ctx context.Context, number, offset int) ([]*models.Tenant, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Tenant{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count tenants: %w", err)
	}
	if total > 0 && int64(offset) >= total {
		return nil, ErrNoResult
	}

	tenants := make([]*models.Tenant, 0)
	if number == 0 || total == 0 {
		return tenants, nil
	}

	err := db.Order("id ASC").Offset(offset).Limit(number).Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// CreateTenant 创建租户
func (s *AccountsService) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := ValidateEntity(tenant, "Invalid tenant"); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Tenant{}).Where("slug = ?", tenant.Slug).Count(&count).Error; err != nil {
		return fmt.Errorf("check tenant slug: %w", err)
	}
	if count > 0 {
		return ErrEntityAlreadyExists
	}

	if err := db.Create(tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEntityAlreadyExists
		}
		return fmt.Errorf("create tenant: %w", err)
	}

	metrics.TenantsCreatedTotal.Inc()
	logger.GetLogger().WithField("tenant", tenant.Slug).Info("tenant created")
	return nil
}

// UpdateTenant 按slug更新租户的可变字段
func (s *AccountsService) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := ValidateEntity(tenant, "Invalid tenant"); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)

	var existing models.Tenant
	err := db.Where("slug = ?", tenant.Slug).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEntityDoesNotExist
	}
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", tenant.Slug, err)
	}

	existing.Name = tenant.Name
	existing.Description = tenant.Description
	existing.ContactEmail = tenant.ContactEmail
	existing.Settings = tenant.Settings

	if err := db.Save(&existing).Error; err != nil {
		return fmt.Errorf("update tenant %s: %w", tenant.Slug, err)
	}

	*tenant = existing
	return nil
}

// CountTenants 租户总数
func (s *AccountsService) CountTenants(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Tenant{}).Count(&total).Error
	return total, err
}

// ========== 用户 ==========

// CreateInitialUser 为租户创建首个用户，该用户获得管理员角色
func (s *AccountsService) CreateInitialUser(ctx context.Context, tenant *models.Tenant, user *models.User) error {
	if tenant == nil || tenant.ID == 0 {
		return errors.New("initial user requires a persisted tenant")
	}
	if err := ValidateEntity(user, "Invalid user"); err != nil {
		return err
	}
	if user.Password == "" {
		return NewInvalidEntityError("Invalid user", FieldError{Field: "password", Message: "may not be empty"})
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return ErrEntityAlreadyExists
	}

	if err := user.SetPassword(user.Password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = ""
	user.TenantID = &tenant.ID
	user.IsGlobal = false
	user.Roles = []models.UserRole{{Role: models.RoleAdmin}}

	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEntityAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"tenant": tenant.Slug,
		"user":   user.Username,
	}).Info("initial user created")
	return nil
}

// FindUserByID 根据ID获取用户（含角色和租户）
func (s *AccountsService) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").Preload("Tenant").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityDoesNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

// FindUserByUsername 根据用户名获取用户
func (s *AccountsService) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Tenant").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityDoesNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	return &user, nil
}

// UpdateLastLogin 更新最后登录时间
func (s *AccountsService) UpdateLastLogin(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login_at", time.Now()).Error
}

// CountUsers 用户总数
func (s *AccountsService) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error
	return total, err
}
