package middleware

import (
	"time"

	"asyncops/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id (reusing the caller's when
// present) and logs one line when it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if u := CurrentUser(c); u != nil {
			args = append(args, "uid", u.ID)
		}
		switch {
		case status >= 500:
			logger.Error("http.request", args...)
		case status >= 400:
			logger.Warn("http.request", args...)
		default:
			logger.Info("http.request", args...)
		}
	}
}
