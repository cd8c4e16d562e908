package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emelmujiro/offline-gateway/internal/app"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, db *gorm.DB) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/healthz", disabledHealthHandler)
		r.GET("/healthz/live", disabledHealthHandler)
		r.GET("/healthz/ready", disabledHealthHandler)
		return
	}

	r.GET("/healthz", readinessHandler(db))
	r.GET("/healthz/ready", readinessHandler(db))
	r.GET("/healthz/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"status":     "ok",
			"checked_at": time.Now().UTC(),
		})
	})
}

// readinessHandler reports whether the durable store is reachable. The origin
// is deliberately excluded: serving cached content while the origin is down
// is the entire point of the gateway.
func readinessHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		state := "ok"

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}

		c.JSON(status, gin.H{
			"success":    status == http.StatusOK,
			"status":     state,
			"checked_at": time.Now().UTC(),
		})
	}
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
