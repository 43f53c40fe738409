package services

import (
	"context"
	"fmt"
	"time"

	"tenancy/internal/metrics"
	"tenancy/pkg/logger"

	"github.com/robfig/cron/v3"
)

// TenantCounter 提供租户和用户计数
type TenantCounter interface {
	CountTenants(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// TenantMetricsCollector 定期刷新租户统计指标
type TenantMetricsCollector struct {
	counter  TenantCounter
	schedule string
	cron     *cron.Cron
	running  bool
}

// NewTenantMetricsCollector 创建统计采集器
func NewTenantMetricsCollector(counter TenantCounter, schedule string) *TenantMetricsCollector {
	return &TenantMetricsCollector{
		counter:  counter,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start 启动采集
func (c *TenantMetricsCollector) Start() error {
	if c.running {
		return fmt.Errorf("collector already running")
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Collect(ctx); err != nil {
			logger.GetLogger().Errorf("collect tenant metrics: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid metrics schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.running = true
	logger.GetLogger().Infof("tenant metrics collector started (%s)", c.schedule)
	return nil
}

// Stop 停止采集并等待正在执行的任务
func (c *TenantMetricsCollector) Stop() {
	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
	logger.GetLogger().Info("tenant metrics collector stopped")
}

// Collect 立即采集一次
func (c *TenantMetricsCollector) Collect(ctx context.Context) error {
	tenants, err := c.counter.CountTenants(ctx)
	if err != nil {
		return fmt.Errorf("count tenants: %w", err)
	}
	users, err := c.counter.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	metrics.SetTenantCounts(tenants, users)
	return nil
}
