package push

import (
	"context"
	"fmt"
	"io"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/emelmujiro/offline-gateway/internal/models"
)

// Sender delivers an encrypted push message to one subscription and reports
// the push service's status code.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, message []byte) (int, error)
}

// VAPIDConfig carries the voluntary application server identification keys
// used to sign push requests.
type VAPIDConfig struct {
	Subscriber string
	PublicKey  string
	PrivateKey string
	TTLSeconds int
}

// WebPushSender sends messages through the Web Push protocol with VAPID
// authentication.
type WebPushSender struct {
	cfg VAPIDConfig
}

// NewWebPushSender constructs a sender from VAPID configuration.
func NewWebPushSender(cfg VAPIDConfig) *WebPushSender {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 86400
	}
	return &WebPushSender{cfg: cfg}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, message []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTLSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("push: send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
