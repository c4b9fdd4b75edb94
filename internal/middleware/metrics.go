package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/service"
)

const (
	metricsPath    = "/metrics"
	unmatchedRoute = "unmatched"
)

// Metrics records request count and latency per route template. Requests
// that match no route share one label; scrapes of /metrics are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
