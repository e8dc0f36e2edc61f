// internal/middleware/metrics_middleware.go
package middleware

import (
	"leaven-service/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware counts requests by route template, not raw path.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status())
	}
}
