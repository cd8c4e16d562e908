package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/internal/cache"
	"github.com/emelmujiro/offline-gateway/internal/replay"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

// maxRequestBody caps how much of a client request body the gateway buffers
// for proxying and queueing.
const maxRequestBody = 8 << 20 // 8 MiB

// RouteClassKey is the gin context key under which the handler records the
// request's routing class for downstream middleware.
const RouteClassKey = "route_class"

// SyncQueue accepts requests that could not reach the origin. Satisfied by
// replay.Coordinator.
type SyncQueue interface {
	Enqueue(ctx context.Context, tag string, data []byte) error
	EnqueueRequest(ctx context.Context, req replay.ReplayRequest) error
}

// HandlerConfig maps API paths onto their sync tags.
type HandlerConfig struct {
	ContactPath   string
	AnalyticsPath string
}

// Handler is the gateway's catch-all request handler. It classifies each
// intercepted request, dispatches it to the matching cache strategy, and
// queues failed API writes for background replay.
type Handler struct {
	classifier *Classifier
	manager    *cache.Manager
	fetch      cache.Fetcher
	queue      SyncQueue
	cfg        HandlerConfig
	log        *zap.Logger
}

// NewHandler constructs the gateway handler.
func NewHandler(classifier *Classifier, manager *cache.Manager, fetch cache.Fetcher, queue SyncQueue, cfg HandlerConfig) *Handler {
	return &Handler{
		classifier: classifier,
		manager:    manager,
		fetch:      fetch,
		queue:      queue,
		cfg:        cfg,
		log:        logger.WithModule("gateway"),
	}
}

// Handle serves one intercepted request.
func (h *Handler) Handle(c *gin.Context) {
	r := c.Request
	class := h.classifier.Classify(r)
	c.Set(RouteClassKey, string(class))

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			c.Data(http.StatusBadRequest, plainText, []byte("Malformed request body"))
			return
		}
		body = data
	}

	req := cache.Request{
		Method: r.Method,
		URL:    RequestURL(r).String(),
		Header: r.Header,
		Body:   body,
		Class:  string(class),
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.handleWrite(c, req, class)
		return
	}

	var resp *cache.Response
	switch class {
	case ClassDynamicAsset:
		resp = h.manager.CacheFirst(c.Request.Context(), req)
	case ClassNavigation:
		resp = h.manager.ShellFallback(c.Request.Context(), req)
	default:
		// API calls and everything unclassified prefer fresh content.
		resp = h.manager.NetworkFirst(c.Request.Context(), req)
	}

	writeResponse(c, resp)
}

// handleWrite proxies a mutating request. When the origin is unreachable the
// request is queued for replay and acknowledged with 202 so the client can
// treat it as eventually delivered.
func (h *Handler) handleWrite(c *gin.Context, req cache.Request, class Class) {
	resp, err := h.fetch.Fetch(c.Request.Context(), req)
	if err == nil {
		writeResponse(c, resp)
		return
	}

	if class != ClassAPI || h.queue == nil {
		c.Data(http.StatusServiceUnavailable, plainText, []byte(apperrors.ErrOffline.Message))
		return
	}

	tag, queueErr := h.enqueue(c.Request.Context(), req)
	if queueErr != nil {
		h.log.Error("failed to queue offline request",
			zap.String("url", req.URL),
			zap.Error(queueErr),
		)
		c.Data(http.StatusServiceUnavailable, plainText, []byte(apperrors.ErrOffline.Message))
		return
	}

	h.log.Info("queued request for background sync",
		zap.String("url", req.URL),
		zap.String("tag", tag),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"queued":  true,
		"tag":     tag,
	})
}

func (h *Handler) enqueue(ctx context.Context, req cache.Request) (string, error) {
	path := requestPath(req.URL)

	switch path {
	case h.cfg.ContactPath:
		return replay.TagContactForm, h.queue.Enqueue(ctx, replay.TagContactForm, req.Body)
	case h.cfg.AnalyticsPath:
		return replay.TagAnalytics, h.queue.Enqueue(ctx, replay.TagAnalytics, req.Body)
	}

	header := make(map[string]string, len(req.Header))
	for key := range req.Header {
		header[key] = req.Header.Get(key)
	}
	return replay.TagFailedRequest, h.queue.EnqueueRequest(ctx, replay.ReplayRequest{
		URL:    req.URL,
		Method: req.Method,
		Header: header,
		Body:   req.Body,
	})
}

const plainText = "text/plain; charset=utf-8"

func writeResponse(c *gin.Context, resp *cache.Response) {
	header := c.Writer.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	if resp.FromCache {
		header.Set("X-Offline-Cache", "hit")
	}
	c.Status(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}

func requestPath(rawURL string) string {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.IndexByte(path, '/'); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
