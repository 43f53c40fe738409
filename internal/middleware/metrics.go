package middleware

import (
	"strconv"
	"time"

	"tenancy/internal/metrics"

	"github.com/gin-gonic/gin"
)

// PrometheusMiddleware 记录API请求指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		metrics.IncrementAPIRequests(c.Request.Method, endpoint, statusCode)
		metrics.RecordAPIRequestDuration(c.Request.Method, endpoint, time.Since(start).Seconds())
	}
}
