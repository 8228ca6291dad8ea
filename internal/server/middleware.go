package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
)

// RateLimit throttles a route per client IP.
func (s *Server) RateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter.Allow(route + "|" + c.ClientIP()) {
			c.Next()
			return
		}
		s.metrics.RecordRateLimited(route)
		c.Header("Retry-After", "60")
		AbortWithError(c, ErrRateLimited)
	}
}

func metricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		metrics.ObserveAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
