package response

import (
	"net/http"

	"tenancy/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response 统一返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FieldError 字段级校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResponse 校验失败返回格式
type ValidationResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// ========== 基础返回方法 ==========

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 成功返回（自定义消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// OK 成功返回（空响应体）
func OK(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Error 通用错误返回，HTTP状态码与业务码一致
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// Text 纯文本返回
func Text(c *gin.Context, status int, message string) {
	c.String(status, message)
}

// Status 仅返回状态码
func Status(c *gin.Context, status int) {
	c.Status(status)
}

// ValidationFailed 返回字段级校验错误
func ValidationFailed(c *gin.Context, message string, fieldErrors []FieldError) {
	if fieldErrors == nil {
		fieldErrors = []FieldError{}
	}
	c.JSON(errors.CodeValidationFailed, ValidationResponse{
		Code:    errors.CodeValidationFailed,
		Message: message,
		Errors:  fieldErrors,
	})
}

// ========== HTTP错误快捷方法 ==========

func BadRequest(c *gin.Context, message string) {
	Error(c, errors.CodeInvalidParam, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, errors.CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, errors.CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, errors.CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, errors.CodeServerError, message)
}
