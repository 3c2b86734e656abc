package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 in the handlers' error shape and logs it
// with the stack and request id.
func Recovery(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			id := GetRequestID(c)
			logger.Errorw("panic recovered",
				"request_id", id,
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"stack", string(debug.Stack()),
			)

			body := gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "internal server error",
			}
			if id != "" {
				body["request_id"] = id
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": body})
		}()

		c.Next()
	}
}
