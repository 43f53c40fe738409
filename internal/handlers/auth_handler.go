package handlers

import (
	"context"
	"errors"
	"time"

	"tenancy/internal/models"
	"tenancy/internal/services"
	"tenancy/pkg/logger"
	"tenancy/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserAuthenticator 登录所需的用户查询
type UserAuthenticator interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uint) error
}

// TokenIssuer 令牌签发
type TokenIssuer interface {
	GenerateToken(userID uint) (string, error)
	GetTokenDuration() time.Duration
}

type AuthHandler struct {
	users  UserAuthenticator
	tokens TokenIssuer
}

func NewAuthHandler(users UserAuthenticator, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Tenant    string `json:"tenant,omitempty"`
	Global    bool   `json:"global"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Username and password are required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, services.ErrEntityDoesNotExist) {
			logger.ForRequest(c).Errorf("login lookup: %v", err)
		}
		response.Unauthorized(c, "Invalid username or password")
		return
	}

	if !user.CheckPassword(req.Password) {
		response.Unauthorized(c, "Invalid username or password")
		return
	}

	tenantSlug := ""
	if user.Tenant != nil {
		tenantSlug = user.Tenant.Slug
	}

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		logger.ForRequest(c).Errorf("generate token: %v", err)
		response.ServerError(c, "Internal server error")
		return
	}

	// 登录时间更新失败不影响登录
	if err := h.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.ForRequest(c).Warnf("update last login of %s: %v", user.Username, err)
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokens.GetTokenDuration()).Unix(),
		Tenant:    tenantSlug,
		Global:    user.IsGlobal,
	})
}
