package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/logger"
)

// ErrorHandler renders errors attached with c.Error by middleware that
// aborted the chain, such as a rejected token or operator key. Handlers
// write their own error bodies; a response already written is left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := asAppError(err)
		if appErr.Internal != nil || appErr == apperrors.ErrInternalServer {
			logger.Get().Errorw("request failed",
				"request_id", c.GetString(requestIDKey),
				"code", appErr.Code,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}

// asAppError maps err to the AppError a client may see. Anything else
// becomes a generic internal error.
func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.ErrInternalServer
}
