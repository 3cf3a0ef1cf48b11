package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "jadbank/internal/errors"
)

const apiKeyHeader = "X-API-Key"

// OperatorAuthMiddleware guards the manual-review endpoints. It validates the
// X-API-Key header against the configured operator key; with no key
// configured the endpoints are off. Rejections are rendered by ErrorHandler.
func OperatorAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			_ = c.Error(apperrors.ErrOperatorNotConfigured)
			c.Abort()
			return
		}
		key := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			_ = c.Error(apperrors.ErrInvalidAPIKey)
			c.Abort()
			return
		}
		c.Set("operator", true)
		c.Next()
	}
}
