package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/internal/gateway"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

// Logger writes a concise structured access log for each request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if class, ok := c.Get(gateway.RouteClassKey); ok {
			fields = append(fields, zap.String("class", class.(string)))
		}

		logger.WithModule("http").Info("request", fields...)
	}
}
