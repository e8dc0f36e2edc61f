// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"net/http"

	"leaven-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500. When the response
// has already started, as with a hijacked websocket upgrade, the panic is
// only logged. http.ErrAbortHandler is re-raised for net/http.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			}
			if userID, ok := GetUserID(c); ok {
				fields = append(fields, zap.String("user_id", userID))
			}
			logger.Error("http handler panicked", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}
