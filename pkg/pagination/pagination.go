package pagination

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 分页配置
const (
	DefaultNumber = 50
	DefaultOffset = 0
)

// ListParams 偏移量分页参数
type ListParams struct {
	Number int `json:"number" form:"number"`
	Offset int `json:"offset" form:"offset"`
}

// ResultSet 列表返回包装
type ResultSet[T any] struct {
	Href   string `json:"href"`
	Number int    `json:"number"`
	Offset int    `json:"offset"`
	Items  []T    `json:"items"`
}

// ParseListParams 从请求中解析 number/offset 参数
func ParseListParams(c *gin.Context) (*ListParams, error) {
	number, err := parseNonNegative(c.DefaultQuery("number", strconv.Itoa(DefaultNumber)), "number")
	if err != nil {
		return nil, err
	}

	offset, err := parseNonNegative(c.DefaultQuery("offset", strconv.Itoa(DefaultOffset)), "offset")
	if err != nil {
		return nil, err
	}

	return &ListParams{
		Number: number,
		Offset: offset,
	}, nil
}

func parseNonNegative(raw, name string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return value, nil
}

// NewResultSet 构造列表返回，items 为 nil 时返回空数组
func NewResultSet[T any](href string, params *ListParams, items []T) *ResultSet[T] {
	if items == nil {
		items = []T{}
	}
	return &ResultSet[T]{
		Href:   href,
		Number: params.Number,
		Offset: params.Offset,
		Items:  items,
	}
}
