package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/guard"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		pageKey := ""
		if tab := tabs.FromContext(c); tab != nil {
			pageKey = tab.PageKey()
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"tab_id":      c.GetString(tabs.TabIDKey),
			"user_id":     c.GetString(guard.UserIDKey),
			"page":        pageKey,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
