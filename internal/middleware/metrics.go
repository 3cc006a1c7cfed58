package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wave-alert-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request duration and status per route pattern. Requests to
// the skipped paths (scrapes and health checks) are not observed, and requests that
// match no route share one label.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		path := c.FullPath()
		if _, ok := skipped[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
