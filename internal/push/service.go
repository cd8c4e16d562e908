package push

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/internal/models"
	"github.com/emelmujiro/offline-gateway/internal/realtime"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
	"github.com/emelmujiro/offline-gateway/pkg/metrics"
)

// WindowRegistry is the set of connected application windows a notification
// can be shown on. Satisfied by realtime.Hub.
type WindowRegistry interface {
	Windows() []realtime.Window
	Send(id string, msg realtime.Message) bool
	Broadcast(msg realtime.Message)
}

// Config carries the notification defaults applied to incoming payloads.
type Config struct {
	// AppPath identifies windows belonging to this application when routing
	// notification clicks.
	AppPath string
	// DefaultURL is opened when a payload names no target.
	DefaultURL string
	Icon       string
	Badge      string
}

// ClickAction tells the caller how a notification click was resolved.
type ClickAction string

const (
	// ClickFocused means an already-open window was focused.
	ClickFocused ClickAction = "focused"
	// ClickOpen means no window matched and the caller should open one.
	ClickOpen ClickAction = "open"
	// ClickDismissed means the notification was closed without navigation.
	ClickDismissed ClickAction = "dismissed"
)

// ClickResult reports the outcome of routing one notification click.
type ClickResult struct {
	Action   ClickAction `json:"action"`
	WindowID string      `json:"window_id,omitempty"`
	URL      string      `json:"url,omitempty"`
}

// Service resolves push payloads into notifications and fans them out to
// connected windows and registered push subscriptions.
type Service struct {
	windows WindowRegistry
	store   SubscriptionStore
	sender  Sender
	cfg     Config
	log     *zap.Logger
}

// NewService constructs the push delivery service. sender may be nil when
// web push is disabled; windows still receive notifications.
func NewService(windows WindowRegistry, store SubscriptionStore, sender Sender, cfg Config) *Service {
	if cfg.DefaultURL == "" {
		cfg.DefaultURL = "/"
	}
	return &Service{
		windows: windows,
		store:   store,
		sender:  sender,
		cfg:     cfg,
		log:     logger.WithModule("push"),
	}
}

// Subscribe registers a push subscription.
func (s *Service) Subscribe(ctx context.Context, sub *models.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return apperrors.NewBadRequest("endpoint, p256dh and auth are required")
	}
	return s.store.Save(ctx, sub)
}

// Unsubscribe removes the subscription for an endpoint.
func (s *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return apperrors.NewBadRequest("endpoint is required")
	}
	return s.store.Delete(ctx, endpoint)
}

// OnPush resolves a raw push payload and delivers the notification. A
// malformed payload is rejected without showing anything.
func (s *Service) OnPush(ctx context.Context, raw []byte) (*Notification, error) {
	if len(raw) == 0 {
		return nil, apperrors.ErrBadPushPayload
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.ErrBadPushPayload.WithInternal(err)
	}
	if payload.Title == "" {
		return nil, apperrors.ErrBadPushPayload
	}

	notification := s.resolve(payload)
	s.deliver(ctx, notification)
	return notification, nil
}

// OnNotificationClick routes a click on a displayed notification. The view
// action (or a bare click) focuses the first open application window; with
// none open, exactly one new window is requested at the notification's URL.
func (s *Service) OnNotificationClick(ctx context.Context, action, url string) ClickResult {
	if action == "close" {
		return ClickResult{Action: ClickDismissed}
	}

	if url == "" {
		url = s.cfg.DefaultURL
	}

	for _, window := range s.windows.Windows() {
		if !strings.Contains(window.URL, s.cfg.AppPath) {
			continue
		}
		if s.windows.Send(window.ID, realtime.Message{
			Event: "focus",
			Data:  map[string]string{"url": url},
		}) {
			return ClickResult{Action: ClickFocused, WindowID: window.ID, URL: url}
		}
	}

	return ClickResult{Action: ClickOpen, URL: url}
}

// NotifyDelivered announces that a queued contact form reached the origin.
// Implements the sync coordinator's notifier.
func (s *Service) NotifyDelivered(ctx context.Context, tag string) {
	s.log.Debug("announcing delivered sync entry", zap.String("tag", tag))
	s.deliver(ctx, &Notification{
		Title:   "문의 전송 완료",
		Body:    "오프라인에서 작성한 문의가 성공적으로 전송되었습니다.",
		Icon:    s.cfg.Icon,
		Badge:   s.cfg.Badge,
		Vibrate: defaultVibration(),
		Data:    NotificationData{URL: s.cfg.DefaultURL, PrimaryKey: 1},
		Actions: defaultActions(),
	})
}

func (s *Service) resolve(payload Payload) *Notification {
	notification := &Notification{
		Title:   payload.Title,
		Body:    payload.Body,
		Icon:    payload.Icon,
		Badge:   s.cfg.Badge,
		Vibrate: defaultVibration(),
		Data: NotificationData{
			URL:        payload.URL,
			PrimaryKey: payload.ID,
		},
		Actions: payload.Actions,
	}

	if notification.Icon == "" {
		notification.Icon = s.cfg.Icon
	}
	if notification.Data.URL == "" {
		notification.Data.URL = s.cfg.DefaultURL
	}
	if notification.Data.PrimaryKey == 0 {
		notification.Data.PrimaryKey = 1
	}
	if len(notification.Actions) == 0 {
		notification.Actions = defaultActions()
	}
	return notification
}

func (s *Service) deliver(ctx context.Context, notification *Notification) {
	s.windows.Broadcast(realtime.Message{Event: "notification", Data: notification})
	metrics.PushDeliveries.WithLabelValues("window", "delivered").Inc()

	if s.sender == nil || s.store == nil {
		return
	}

	subs, err := s.store.List(ctx)
	if err != nil {
		s.log.Error("failed to list push subscriptions", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	message, err := json.Marshal(notification)
	if err != nil {
		s.log.Error("failed to encode notification", zap.Error(err))
		return
	}

	for _, sub := range subs {
		status, err := s.sender.Send(ctx, sub, message)
		switch {
		case err != nil:
			metrics.PushDeliveries.WithLabelValues("webpush", "error").Inc()
			s.log.Warn("web push delivery failed",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err),
			)
		case status == http.StatusNotFound || status == http.StatusGone:
			// The push service no longer knows this endpoint.
			metrics.PushDeliveries.WithLabelValues("webpush", "pruned").Inc()
			if err := s.store.Delete(ctx, sub.Endpoint); err != nil {
				s.log.Warn("failed to prune stale subscription",
					zap.String("endpoint", sub.Endpoint),
					zap.Error(err),
				)
			}
		default:
			metrics.PushDeliveries.WithLabelValues("webpush", "delivered").Inc()
		}
	}
}
