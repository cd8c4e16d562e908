package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emelmujiro/offline-gateway/internal/models"
	"github.com/emelmujiro/offline-gateway/internal/push"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
	"github.com/emelmujiro/offline-gateway/pkg/response"
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

type clickRequest struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

func registerNotificationRoutes(r *gin.Engine, svc *push.Service) {
	group := r.Group("/api/notifications")

	group.POST("/subscribe", func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.NewBadRequest("subscription endpoint and keys are required"))
			return
		}

		err := svc.Subscribe(c.Request.Context(), &models.PushSubscription{
			Endpoint: req.Endpoint,
			P256dh:   req.Keys.P256dh,
			Auth:     req.Keys.Auth,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusCreated, gin.H{"endpoint": req.Endpoint})
	})

	group.DELETE("/subscribe", func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.NewBadRequest("subscription endpoint is required"))
			return
		}

		if err := svc.Unsubscribe(c.Request.Context(), req.Endpoint); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"endpoint": req.Endpoint})
	})

	group.POST("/click", func(c *gin.Context) {
		var req clickRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.NewBadRequest("invalid click payload"))
			return
		}

		result := svc.OnNotificationClick(c.Request.Context(), req.Action, req.URL)
		response.Success(c, http.StatusOK, result)
	})
}
