package main

import (
	"fmt"

	"tenancy/internal/models"
	"tenancy/pkg/config"
	"tenancy/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData(db *gorm.DB, cfg config.AdminConfig) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	if err := createGlobalAdmin(db, cfg); err != nil {
		return fmt.Errorf("create global admin: %w", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createGlobalAdmin 创建全局管理员用户
func createGlobalAdmin(db *gorm.DB, cfg config.AdminConfig) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", cfg.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.GetLogger().Info("Global admin already exists, skipping")
		return nil
	}

	password := cfg.Password
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	user := &models.User{
		Username: cfg.Username,
		Email:    cfg.Email,
		IsGlobal: true,
		Roles:    []models.UserRole{{Role: models.RoleAdmin}},
	}
	if err := user.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := db.Create(user).Error; err != nil {
		return err
	}

	if generated {
		logger.GetLogger().Warnf("Global admin created - username: %s, generated password: %s", cfg.Username, password)
	} else {
		logger.GetLogger().Infof("Global admin created - username: %s", cfg.Username)
	}
	return nil
}
