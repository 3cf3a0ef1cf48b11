package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jadbank/internal/logger"
)

const (
	requestIDKey       = "requestID"
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// RequestLogging logs one line per request. A request id supplied by the
// gateway is kept, otherwise a new one is minted. Money movement lines carry
// the Idempotency-Key and the authenticated user so a retry can be traced
// back to the original call.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if userID := c.GetString("userID"); userID != "" {
			fields = append(fields, "user_id", userID)
		}
		if key := c.GetHeader("Idempotency-Key"); key != "" {
			fields = append(fields, "idempotency_key", key)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error_code", asAppError(c.Errors.Last().Err).Code)
		}
		logger.Get().Infow("request", fields...)
	}
}
