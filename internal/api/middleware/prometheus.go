// Package middleware holds gin middleware shared across the HTTP surface,
// generalized from src/handlers/prometheus_metrics.go's inline Prometheus
// wiring into a standalone middleware the router installs once.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreledger/engine/internal/telemetry"
)

// Prometheus records per-request latency and counts, labeled by method,
// route, and status code.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPDuration.WithLabelValues(c.Request.Method, route, status).Observe(duration.Seconds())
		telemetry.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
