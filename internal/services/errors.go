package services

import (
	"errors"
	"fmt"
	"strings"
)

// 存储层错误
var (
	ErrEntityDoesNotExist  = errors.New("entity does not exist")
	ErrEntityAlreadyExists = errors.New("entity already exists")
	ErrNoResult            = errors.New("no result")
)

// FieldError 字段级错误
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + " " + e.Message
}

// InvalidEntityError 实体校验失败
type InvalidEntityError struct {
	Message string
	Errors  []FieldError
}

func (e *InvalidEntityError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
}

// NewInvalidEntityError 创建校验失败错误
func NewInvalidEntityError(message string, fieldErrors ...FieldError) *InvalidEntityError {
	return &InvalidEntityError{Message: message, Errors: fieldErrors}
}
