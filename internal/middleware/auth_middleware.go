package middleware

import (
	"context"
	"errors"
	"net"
	"strings"

	"tenancy/internal/execution"
	"tenancy/internal/metrics"
	"tenancy/internal/models"
	"tenancy/internal/services"
	"tenancy/pkg/jwt"
	"tenancy/pkg/logger"
	"tenancy/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantHeader 显式指定租户的请求头
const TenantHeader = "X-Tenant"

// AccountLookup 解析上下文所需的账户查询
type AccountLookup interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindTenant(ctx context.Context, slug string) (*models.Tenant, error)
}

// TokenVerifier 令牌校验
type TokenVerifier interface {
	VerifyToken(tokenString string) (*jwt.Claims, error)
}

// RoleChecker 角色检查
type RoleChecker interface {
	UserHasRole(ctx context.Context, user *models.User, role models.Role) bool
}

// Requirement 路由声明的访问要求
type Requirement struct {
	Roles              []models.Role // 满足其一即可，为空表示仅需登录
	RequiresGlobalUser bool          // 是否要求全局用户
}

// AuthMiddleware 认证与授权中间件
type AuthMiddleware struct {
	accounts   AccountLookup
	tokens     TokenVerifier
	gatekeeper RoleChecker
	rootDomain string
}

func NewAuthMiddleware(accounts AccountLookup, tokens TokenVerifier, gatekeeper RoleChecker, rootDomain string) *AuthMiddleware {
	return &AuthMiddleware{
		accounts:   accounts,
		tokens:     tokens,
		gatekeeper: gatekeeper,
		rootDomain: strings.ToLower(strings.TrimPrefix(rootDomain, ".")),
	}
}

// ResolveContext 解析当前用户和租户并生成执行上下文。未携带令牌的请求得到匿名上下文
func (m *AuthMiddleware) ResolveContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var user *models.User
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(c, "Malformed authorization header")
				c.Abort()
				return
			}

			claims, err := m.tokens.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				response.Unauthorized(c, "Invalid or expired token")
				c.Abort()
				return
			}

			user, err = m.accounts.FindUserByID(ctx, claims.UserID)
			if err != nil {
				if !errors.Is(err, services.ErrEntityDoesNotExist) {
					logger.ForRequest(c).Errorf("load user %d: %v", claims.UserID, err)
				}
				response.Unauthorized(c, "Unknown user")
				c.Abort()
				return
			}
		}

		tenant, err := m.resolveTenant(c, user)
		if err != nil {
			logger.ForRequest(c).Errorf("resolve tenant: %v", err)
			response.ServerError(c, "Internal server error")
			c.Abort()
			return
		}

		// 租户用户只能在自己的租户内操作
		if user != nil && !user.IsGlobal && tenant != nil &&
			(user.TenantID == nil || *user.TenantID != tenant.ID) {
			metrics.IncrementAuthorizationDenials("foreign_tenant")
			response.Forbidden(c, "User does not belong to this tenant")
			c.Abort()
			return
		}

		execution.Attach(c, execution.New(tenant, user))
		c.Next()
	}
}

// resolveTenant 依次从请求头、子域名、用户所属租户解析。未知的slug得到nil
func (m *AuthMiddleware) resolveTenant(c *gin.Context, user *models.User) (*models.Tenant, error) {
	slug := strings.TrimSpace(c.GetHeader(TenantHeader))
	if slug == "" {
		slug = m.subdomainSlug(c.Request.Host)
	}
	if slug == "" {
		if user != nil && user.Tenant != nil {
			return user.Tenant, nil
		}
		return nil, nil
	}

	tenant, err := m.accounts.FindTenant(c.Request.Context(), slug)
	if errors.Is(err, services.ErrEntityDoesNotExist) {
		logger.ForRequest(c).Debugf("no tenant for slug %q", slug)
		return nil, nil
	}
	return tenant, err
}

func (m *AuthMiddleware) subdomainSlug(host string) string {
	if m.rootDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	suffix := "." + m.rootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	slug := strings.TrimSuffix(host, suffix)
	if slug == "" || strings.Contains(slug, ".") {
		return ""
	}
	return slug
}

// RequireLogin 仅要求已登录
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return m.Authorize(Requirement{})
}

// Authorize 在处理函数之前检查路由声明的访问要求
func (m *AuthMiddleware) Authorize(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := execution.From(c).User()
		if user == nil {
			metrics.IncrementAuthorizationDenials("unauthenticated")
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		if req.RequiresGlobalUser && !user.IsGlobal {
			metrics.IncrementAuthorizationDenials("not_global")
			response.Forbidden(c, "Global user required")
			c.Abort()
			return
		}

		if len(req.Roles) > 0 && !m.hasAnyRole(c.Request.Context(), user, req.Roles) {
			metrics.IncrementAuthorizationDenials("missing_role")
			response.Forbidden(c, "Insufficient role")
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) hasAnyRole(ctx context.Context, user *models.User, roles []models.Role) bool {
	for _, role := range roles {
		if m.gatekeeper.UserHasRole(ctx, user, role) {
			return true
		}
	}
	return false
}
