package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emelmujiro/offline-gateway/internal/app"
	"github.com/emelmujiro/offline-gateway/internal/gateway"
	"github.com/emelmujiro/offline-gateway/internal/middleware"
	"github.com/emelmujiro/offline-gateway/internal/push"
	"github.com/emelmujiro/offline-gateway/internal/realtime"
	"github.com/emelmujiro/offline-gateway/internal/replay"
)

// Dependencies collects everything the router mounts. Gateway, DB and Config
// are required; the rest disable their routes when absent.
type Dependencies struct {
	DB      *gorm.DB
	Config  *app.Config
	Gateway *gateway.Handler
	Hub     *realtime.Hub
	Push    *push.Service
	Sync    *replay.Coordinator
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
// Explicit routes terminate at the gateway itself; everything else falls
// through to the catch-all proxy handler.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway handler must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps.Config, deps.DB)
	registerMonitoringRoutes(r, deps.Config)

	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.Serve(c.Writer, c.Request)
		})
	}

	if deps.Push != nil {
		registerNotificationRoutes(r, deps.Push)
	}

	registerInternalRoutes(r, deps.Config, deps.Push, deps.Sync)

	// Everything without an explicit route is an intercepted origin request.
	r.NoRoute(deps.Gateway.Handle)

	return r, nil
}
