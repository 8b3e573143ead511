package middleware

import (
	"strconv"
	"time"

	"github.com/devicewatch/devicewatch/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Prometheus records request counts and latency per route. The route
// template is used instead of the raw path so IDs do not explode the
// label cardinality.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
