package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDKey = "requestID"

// RequestLogger tags every request with an id and logs method, path, status
// and latency through the application logger.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)

		c.Next()

		evt := logger.Info()
		if len(c.Errors) > 0 || c.Writer.Status() >= 500 {
			evt = logger.Error()
		}
		evt.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Msg("request")
	}
}

// GetRequestID returns the request id assigned by RequestLogger.
func GetRequestID(c *gin.Context) string {
	rid, _ := c.Get(requestIDKey)
	s, _ := rid.(string)
	return s
}
