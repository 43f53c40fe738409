package handlers

import (
	"context"
	"errors"
	"net/http"

	"tenancy/internal/execution"
	"tenancy/internal/models"
	"tenancy/internal/services"
	"tenancy/pkg/logger"
	"tenancy/pkg/pagination"
	"tenancy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// TenantsPath 租户集合的路径
const TenantsPath = "/api/v1/tenants"

// AccountsService 租户处理所需的账户服务
type AccountsService interface {
	FindTenant(ctx context.Context, slug string) (*models.Tenant, error)
	FindAllTenants(ctx context.Context, number, offset int) ([]*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	CreateInitialUser(ctx context.Context, tenant *models.Tenant, user *models.User) error
}

// Gatekeeper 角色检查
type Gatekeeper interface {
	UserHasRole(ctx context.Context, user *models.User, role models.Role) bool
}

// MultitenancySettings 多租户设置
type MultitenancySettings interface {
	IsActivated() bool
	RequiredRoleForTenantCreation() models.Role
}

// TenantPayload 请求体中的租户
type TenantPayload struct {
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	ContactEmail string         `json:"contact_email"`
	Settings     datatypes.JSON `json:"settings"`
}

func (p *TenantPayload) toModel() *models.Tenant {
	return &models.Tenant{
		Slug:         p.Slug,
		Name:         p.Name,
		Description:  p.Description,
		ContactEmail: p.ContactEmail,
		Settings:     p.Settings,
	}
}

// UserPayload 请求体中的用户，规则与 models.User 一致，保证无效用户不会进入租户创建流程
type UserPayload struct {
	Username string `json:"username" binding:"required,min=2,max=50,alphanum"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

func (p *UserPayload) toModel() *models.User {
	return &models.User{
		Username: p.Username,
		Email:    p.Email,
		Password: p.Password,
	}
}

// CreationRequest 创建租户请求：租户及其首个用户
type CreationRequest struct {
	User   *UserPayload   `json:"user" binding:"required"`
	Tenant *TenantPayload `json:"tenant" binding:"required"`
}

type TenantHandler struct {
	accounts   AccountsService
	gatekeeper Gatekeeper
	settings   MultitenancySettings
}

func NewTenantHandler(accounts AccountsService, gatekeeper Gatekeeper, settings MultitenancySettings) *TenantHandler {
	return &TenantHandler{
		accounts:   accounts,
		gatekeeper: gatekeeper,
		settings:   settings,
	}
}

// GetTenant 根据slug获取租户
func (h *TenantHandler) GetTenant(c *gin.Context, _ *execution.Context) {
	tenant, err := h.accounts.FindTenant(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, services.ErrEntityDoesNotExist) {
			response.NotFound(c, "Tenant not found")
			return
		}
		logger.ForRequest(c).Errorf("find tenant: %v", err)
		response.ServerError(c, "Internal server error")
		return
	}

	response.Success(c, NewTenantRepresentation(tenant))
}

// GetAllTenants 分页获取租户
func (h *TenantHandler) GetAllTenants(c *gin.Context, _ *execution.Context) {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tenants, err := h.accounts.FindAllTenants(c.Request.Context(), params.Number, params.Offset)
	if err != nil {
		if errors.Is(err, services.ErrNoResult) {
			response.NotFound(c, "No tenants at this offset")
			return
		}
		logger.ForRequest(c).Errorf("list tenants: %v", err)
		response.ServerError(c, "Internal server error")
		return
	}

	representations := make([]*TenantRepresentation, 0, len(tenants))
	for _, tenant := range tenants {
		representations = append(representations, NewTenantRepresentation(tenant))
	}

	response.Success(c, pagination.NewResultSet(TenantsPath+"/", params, representations))
}

// CurrentTenant 返回当前上下文中的租户和用户，二者均可为空
func (h *TenantHandler) CurrentTenant(c *gin.Context, ec *execution.Context) {
	response.Success(c, UserAndTenant{
		Tenant: NewTenantRepresentation(ec.Tenant()),
		User:   NewUserRepresentation(ec.User()),
	})
}

// UpdateTenant 更新当前租户，slug 始终取自上下文
func (h *TenantHandler) UpdateTenant(c *gin.Context, ec *execution.Context) {
	var payload TenantPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "Malformed request body")
		return
	}

	current := ec.Tenant()
	if current == nil {
		// 认证后应总能解析到租户
		logger.ForRequest(c).Warn("tenant update without a context tenant")
		response.Status(c, http.StatusNotFound)
		return
	}

	tenant := payload.toModel()
	tenant.Slug = current.Slug

	err := h.accounts.UpdateTenant(c.Request.Context(), tenant)

	var invalid *services.InvalidEntityError
	switch {
	case err == nil:
		response.OK(c)
	case errors.As(err, &invalid):
		response.ValidationFailed(c, invalid.Message, toResponseErrors(invalid.Errors))
	case errors.Is(err, services.ErrEntityDoesNotExist):
		response.Text(c, http.StatusNotFound, "Tenant not found\n")
	default:
		logger.ForRequest(c).Errorf("update tenant %s: %v", current.Slug, err)
		response.ServerError(c, "Internal server error")
	}
}

// CreateTenant 创建租户及其首个用户
func (h *TenantHandler) CreateTenant(c *gin.Context, ec *execution.Context) {
	var req CreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fieldErrors := services.FieldErrorsOf(err); fieldErrors != nil {
			response.ValidationFailed(c, "Invalid creation request", toResponseErrors(fieldErrors))
			return
		}
		response.BadRequest(c, "Malformed request body")
		return
	}

	if !h.settings.IsActivated() {
		response.Text(c, http.StatusForbidden, "Tenant creation is not allowed on this server\n")
		return
	}

	ctx := c.Request.Context()
	if !h.isTenantCreationAllowed(ctx, ec) {
		response.Status(c, http.StatusForbidden)
		return
	}

	tenant := req.Tenant.toModel()
	err := h.accounts.CreateTenant(ctx, tenant)
	if err == nil {
		ec.SetTenant(tenant)
		if err = h.accounts.CreateInitialUser(ctx, ec.Tenant(), req.User.toModel()); err != nil {
			// 租户已创建，此处不做回滚
			logger.ForRequest(c).WithFields(logrus.Fields{
				"tenant": tenant.Slug,
				"user":   req.User.Username,
			}).Warnf("tenant created without initial user: %v", err)
		}
	}

	var invalid *services.InvalidEntityError
	switch {
	case err == nil:
		response.OK(c)
	case errors.Is(err, services.ErrEntityAlreadyExists):
		response.Text(c, http.StatusConflict, "A tenant with this slug already exists")
	case errors.As(err, &invalid):
		response.Status(c, http.StatusBadRequest)
	default:
		logger.ForRequest(c).Errorf("create tenant: %v", err)
		response.ServerError(c, "Internal server error")
	}
}

// isTenantCreationAllowed 检查当前用户是否可以创建租户：
// 无需角色时总是允许，否则要求全局用户且拥有所需角色
func (h *TenantHandler) isTenantCreationAllowed(ctx context.Context, ec *execution.Context) bool {
	required := h.settings.RequiredRoleForTenantCreation()
	if required == models.RoleNone {
		return true
	}

	user := ec.User()
	if user == nil || !user.IsGlobal {
		return false
	}

	return h.gatekeeper.UserHasRole(ctx, user, required)
}

func toResponseErrors(fieldErrors []services.FieldError) []response.FieldError {
	out := make([]response.FieldError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, response.FieldError{Field: fe.Field, Message: fe.Message})
	}
	return out
}
