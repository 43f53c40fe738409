package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenancy/internal/database"
	"tenancy/internal/router"
	"tenancy/internal/services"
	"tenancy/pkg/config"
	"tenancy/pkg/jwt"
	"tenancy/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.GetConfig()

	// 初始化日志
	if err := logger.Initialize(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting tenancy service...")

	settings, err := services.NewMultitenancySettings(cfg.Multitenancy)
	if err != nil {
		appLogger.Fatalf("Invalid multitenancy settings: %v", err)
	}

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedisCache(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	db := database.GetDB()

	if err := database.Migrate(db); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := seedData(db, cfg.Admin); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	accounts := services.NewAccountsService(db)
	gatekeeper := newGatekeeper(cfg)

	// 租户统计采集，失败不影响主服务
	if cfg.Metrics.Enabled {
		collector := services.NewTenantMetricsCollector(accounts, cfg.Metrics.Schedule)
		if err := collector.Start(); err != nil {
			appLogger.Errorf("Failed to start tenant metrics collector: %v", err)
		}
		defer collector.Stop()
	}

	r := router.SetupRouter(router.Dependencies{
		Config:     cfg,
		Accounts:   accounts,
		Gatekeeper: gatekeeper,
		Settings:   settings,
		Tokens:     jwt.GetJWTManager(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}

// newGatekeeper 创建鉴权器，启用Redis时缓存角色
func newGatekeeper(cfg *config.Config) *services.Gatekeeper {
	ttl, err := time.ParseDuration(cfg.Redis.RoleTTL)
	if err != nil {
		ttl = 5 * time.Minute
	}

	if roleCache := database.GetRedisCache(); roleCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := roleCache.Ping(ctx); err != nil {
			logger.GetLogger().Warnf("Redis unavailable, role cache disabled: %v", err)
		} else {
			return services.NewGatekeeper(database.GetDB(), roleCache, ttl)
		}
	}
	return services.NewGatekeeper(database.GetDB(), nil, ttl)
}
