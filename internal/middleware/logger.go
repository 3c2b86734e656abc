// Package middleware provides HTTP middleware functions.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// quietRoutes are logged at debug level when they succeed.
var quietRoutes = map[string]bool{
	"/health": true,
}

// Logger returns a middleware that logs every request once it completes,
// with both the route template and the raw path.
func Logger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", GetRequestID(c),
			"status", status,
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", path,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if raw != "" {
			fields = append(fields, "query", raw)
		}
		if size := c.Writer.Size(); size > 0 {
			fields = append(fields, "size", size)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP request", fields...)
		case status >= 400:
			logger.Warnw("HTTP request", fields...)
		case quietRoutes[c.FullPath()]:
			logger.Debugw("HTTP request", fields...)
		default:
			logger.Infow("HTTP request", fields...)
		}
	}
}
