package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("validate")
	RegisterValidations(v)
	return v
}

// RegisterValidations 注册自定义校验规则和字段命名，gin 的 binding 引擎也复用这里
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
}

// ValidateEntity 校验实体，失败时返回 *InvalidEntityError
func ValidateEntity(entity interface{}, message string) error {
	err := validate.Struct(entity)
	if err == nil {
		return nil
	}
	fieldErrors := FieldErrorsOf(err)
	if fieldErrors == nil {
		return fmt.Errorf("validate entity: %w", err)
	}
	return NewInvalidEntityError(message, fieldErrors...)
}

// FieldErrorsOf 将 validator 的错误转换为字段级错误，其他错误返回 nil
func FieldErrorsOf(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fieldErrors := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldPath(fe),
			Message: describe(fe),
		})
	}
	return fieldErrors
}

// 去掉顶层结构体名，保留嵌套路径，如 tenant.slug
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "may not be empty"
	case "email":
		return "must be a valid email address"
	case "slug":
		return "must contain only lowercase letters, digits and dashes"
	case "alphanum":
		return "must contain only letters and digits"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}
