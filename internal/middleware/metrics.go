package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emelmujiro/offline-gateway/internal/gateway"
	"github.com/emelmujiro/offline-gateway/pkg/metrics"
)

// Metrics records per-request latency labelled by routing class. Requests
// answered by explicit routes rather than the gateway report the control
// class.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		class := "control"
		if value, ok := c.Get(gateway.RouteClassKey); ok {
			class = value.(string)
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.GatewayLatency.WithLabelValues(c.Request.Method, class, status).
			Observe(time.Since(start).Seconds())
	}
}
