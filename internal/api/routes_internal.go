package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emelmujiro/offline-gateway/internal/app"
	"github.com/emelmujiro/offline-gateway/internal/push"
	"github.com/emelmujiro/offline-gateway/internal/replay"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
	"github.com/emelmujiro/offline-gateway/pkg/response"
)

// maxPushPayload bounds an ingested push message, mirroring the 4 KiB limit
// push services enforce.
const maxPushPayload = 4 << 10

func registerInternalRoutes(r *gin.Engine, cfg *app.Config, pushSvc *push.Service, sync *replay.Coordinator) {
	group := r.Group("/internal")
	if token := cfg.Push.IngestBearerToken; token != "" {
		group.Use(requireBearer(token))
	}

	if pushSvc != nil {
		group.POST("/push", func(c *gin.Context) {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushPayload))
			if err != nil {
				response.Error(c, apperrors.ErrBadPushPayload)
				return
			}

			notification, err := pushSvc.OnPush(c.Request.Context(), raw)
			if err != nil {
				response.Error(c, err)
				return
			}
			response.Success(c, http.StatusAccepted, notification)
		})
	}

	if sync != nil {
		group.POST("/sync/:tag", func(c *gin.Context) {
			tag := c.Param("tag")
			if !replay.IsKnownTag(tag) {
				response.Error(c, apperrors.ErrUnknownSyncTag)
				return
			}

			delivered, err := sync.OnSync(c.Request.Context(), tag)
			if err != nil {
				response.Error(c, err)
				return
			}
			response.Success(c, http.StatusOK, gin.H{"tag": tag, "delivered": delivered})
		})

		group.POST("/sync", func(c *gin.Context) {
			if err := sync.DrainAll(c.Request.Context()); err != nil {
				response.Error(c, apperrors.Wrap(err, "sync drain failed"))
				return
			}
			response.Success(c, http.StatusOK, gin.H{"drained": true})
		})
	}
}

func requireBearer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing or invalid bearer token",
				},
			})
			return
		}
		c.Next()
	}
}
