// Package execution holds the per-request view of who is calling and on
// behalf of which tenant.
package execution

import (
	"tenancy/internal/models"

	"github.com/gin-gonic/gin"
)

const contextKey = "execution_context"

// Context 单次请求的执行上下文
type Context struct {
	tenant *models.Tenant
	user   *models.User
}

// New 创建执行上下文，tenant 和 user 均可为 nil
func New(tenant *models.Tenant, user *models.User) *Context {
	return &Context{tenant: tenant, user: user}
}

// Tenant 当前租户
func (c *Context) Tenant() *models.Tenant {
	return c.tenant
}

// User 当前用户
func (c *Context) User() *models.User {
	return c.user
}

// SetTenant 设置当前租户
func (c *Context) SetTenant(tenant *models.Tenant) {
	c.tenant = tenant
}

// Attach 将执行上下文保存到gin上下文
func Attach(c *gin.Context, ec *Context) {
	c.Set(contextKey, ec)
}

// From 从gin上下文取出执行上下文，不存在时返回空上下文
func From(c *gin.Context) *Context {
	if v, ok := c.Get(contextKey); ok {
		if ec, ok := v.(*Context); ok {
			return ec
		}
	}
	ec := New(nil, nil)
	Attach(c, ec)
	return ec
}

// HandlerFunc 显式接收执行上下文的处理函数
type HandlerFunc func(c *gin.Context, ec *Context)

// Handle 适配为gin.HandlerFunc
func Handle(h HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c, From(c))
	}
}
