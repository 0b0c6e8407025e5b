package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saarportal/api-gateway/metrics"
)

// PrometheusMiddleware exposes /metrics and records per-route counters.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Status(http.StatusOK)
			promhttp.Handler().ServeHTTP(c.Writer, c.Request)
			c.Abort()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HttpRequestsTotal.WithLabelValues(status, route).Inc()
		metrics.HttpResponseCodesTotal.WithLabelValues(status, route).Inc()
		metrics.HttpRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
