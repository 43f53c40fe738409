package router

import (
	"time"

	"tenancy/internal/execution"
	"tenancy/internal/handlers"
	"tenancy/internal/middleware"
	"tenancy/internal/models"
	"tenancy/internal/services"
	"tenancy/pkg/config"
	"tenancy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Accounts 路由所需的账户服务
type Accounts interface {
	handlers.AccountsService
	handlers.UserAuthenticator
	middleware.AccountLookup
}

// Tokens 令牌签发与校验
type Tokens interface {
	handlers.TokenIssuer
	middleware.TokenVerifier
}

// Dependencies 路由依赖
type Dependencies struct {
	Config     *config.Config
	Accounts   Accounts
	Gatekeeper handlers.Gatekeeper
	Settings   handlers.MultitenancySettings
	Tokens     Tokens
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		services.RegisterValidations(v)
	}

	router := gin.New()

	// 中间件
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config.CORS))

	if deps.Config.Metrics.Enabled {
		router.Use(middleware.PrometheusMiddleware())
		router.GET(deps.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	auth := middleware.NewAuthMiddleware(deps.Accounts, deps.Tokens, deps.Gatekeeper, deps.Config.Multitenancy.RootDomain)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		authHandler := handlers.NewAuthHandler(deps.Accounts, deps.Tokens)
		api.POST("/auth/login", authHandler.Login)

		// 租户路由：先解析执行上下文，再按路由声明的要求授权
		tenantHandler := handlers.NewTenantHandler(deps.Accounts, deps.Gatekeeper, deps.Settings)
		globalAdmin := middleware.Requirement{
			Roles:              []models.Role{models.RoleAdmin},
			RequiresGlobalUser: true,
		}
		tenants := api.Group("/tenants", auth.ResolveContext())
		{
			tenants.GET("", auth.Authorize(globalAdmin), execution.Handle(tenantHandler.GetAllTenants))
			tenants.GET("/_current", auth.RequireLogin(), execution.Handle(tenantHandler.CurrentTenant))
			tenants.GET("/:slug", auth.Authorize(globalAdmin), execution.Handle(tenantHandler.GetTenant))
			tenants.PUT("", auth.RequireLogin(), execution.Handle(tenantHandler.UpdateTenant))
			// 创建租户的授权在处理函数内部判断
			tenants.POST("", execution.Handle(tenantHandler.CreateTenant))
		}
	}
}

func healthCheck(c *gin.Context) {
	response.Success(c, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "tenancy",
	})
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
