package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
)

// RequestLogger writes one structured access log line per request.
// It replaces gin.Logger in production so access logs share the service format.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if userID := auth.GetUserID(c); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		log.Log(c.Request.Context(), level, "http request", attrs...)
	}
}
