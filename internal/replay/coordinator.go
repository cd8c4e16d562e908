package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/pkg/logger"
	"github.com/emelmujiro/offline-gateway/pkg/metrics"
)

// OriginClient issues a replayed request against the origin and reports the
// resulting status code. Transport failures are errors; HTTP statuses are not.
type OriginClient interface {
	Do(ctx context.Context, method, url string, header http.Header, body []byte) (int, error)
}

// Notifier raises a user-visible notification after a successful replay.
type Notifier interface {
	NotifyDelivered(ctx context.Context, tag string)
}

// ReplayRequest is the stored shape of a generic deferred request.
type ReplayRequest struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Header map[string]string `json:"header,omitempty"`
	Body   json.RawMessage   `json:"body,omitempty"`
}

// Config controls the coordinator's replay targets and probe cadence.
type Config struct {
	// ContactPath is the origin endpoint for deferred contact submissions.
	ContactPath string
	// AnalyticsPath is the origin endpoint for deferred analytics batches.
	AnalyticsPath string
	// HealthPath is probed to decide whether connectivity has returned.
	HealthPath string
	// ProbeSchedule is a cron spec for the connectivity probe.
	ProbeSchedule string
}

// Coordinator durably defers failed operations and replays them once the
// origin looks reachable again. It keeps no in-memory queue state: every
// pending payload lives in the Store, so restarts lose nothing.
type Coordinator struct {
	store    Store
	client   OriginClient
	notifier Notifier
	cron     *cron.Cron
	cfg      Config
	log      *zap.Logger
}

// Option customises the Coordinator.
type Option func(*Coordinator)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.cron = c
		}
	}
}

// WithNotifier attaches a notifier for post-replay notifications.
func WithNotifier(n Notifier) Option {
	return func(co *Coordinator) {
		co.notifier = n
	}
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(store Store, client OriginClient, cfg Config, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("replay: store is required")
	}
	if client == nil {
		return nil, errors.New("replay: origin client is required")
	}
	if cfg.ContactPath == "" {
		cfg.ContactPath = "/api/contact/"
	}
	if cfg.AnalyticsPath == "" {
		cfg.AnalyticsPath = "/api/analytics"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.ProbeSchedule == "" {
		cfg.ProbeSchedule = "@every 30s"
	}

	co := &Coordinator{
		store:  store,
		client: client,
		cfg:    cfg,
		log:    logger.WithModule("replay"),
	}

	for _, opt := range opts {
		opt(co)
	}

	if co.cron == nil {
		co.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return co, nil
}

// Enqueue durably stores a payload for the tag, overwriting any unsent
// predecessor. A storage failure propagates to the caller; there is no
// secondary persistence to fall back on.
func (c *Coordinator) Enqueue(ctx context.Context, tag string, data []byte) error {
	if !IsKnownTag(tag) {
		return fmt.Errorf("replay: unknown sync tag %q", tag)
	}

	if err := c.store.Put(ctx, tag, data); err != nil {
		return fmt.Errorf("replay: enqueue %s: %w", tag, err)
	}

	c.log.Info("sync entry enqueued", zap.String("tag", tag), zap.Int("bytes", len(data)))
	c.updatePendingGauge(ctx)
	return nil
}

// EnqueueRequest defers an arbitrary failed request under the generic tag.
func (c *Coordinator) EnqueueRequest(ctx context.Context, req ReplayRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("replay: marshal request: %w", err)
	}
	return c.Enqueue(ctx, TagFailedRequest, data)
}

// OnSync replays the pending entry for a tag. An absent entry is a no-op.
// On a 2xx origin response the entry is deleted and the delivery notified;
// on any failure the entry stays queued untouched for the next sync
// opportunity. Replay failures are logged, never surfaced: the interaction
// that queued the work has long since completed.
func (c *Coordinator) OnSync(ctx context.Context, tag string) (bool, error) {
	entry, ok, err := c.store.Get(ctx, tag)
	if err != nil {
		// A read failure is indistinguishable from "nothing queued".
		c.log.Warn("sync store read failed", zap.String("tag", tag), zap.Error(err))
		metrics.SyncReplays.WithLabelValues(tag, "error").Inc()
		return false, nil
	}
	if !ok {
		return false, nil
	}

	method, url, header, body, err := c.buildReplay(tag, entry.Data)
	if err != nil {
		c.log.Error("sync entry is unreadable", zap.String("tag", tag), zap.Error(err))
		metrics.SyncReplays.WithLabelValues(tag, "error").Inc()
		return false, nil
	}

	status, err := c.client.Do(ctx, method, url, header, body)
	if err != nil || status < 200 || status >= 300 {
		c.log.Warn("sync replay failed, entry retained",
			zap.String("tag", tag),
			zap.Int("status", status),
			zap.Error(err),
		)
		metrics.SyncReplays.WithLabelValues(tag, "retained").Inc()
		return false, nil
	}

	// Clear only the payload we actually sent. A fresh enqueue for the same
	// tag can land while the replay round-trip is in flight; its newer
	// payload stays queued for the next sync opportunity.
	cleared, err := c.store.DeleteIfUnchanged(ctx, tag, entry.EnqueuedAt)
	if err != nil {
		return false, fmt.Errorf("replay: clear delivered entry %s: %w", tag, err)
	}
	if !cleared {
		c.log.Info("sync entry re-enqueued during replay, newer payload retained",
			zap.String("tag", tag), zap.Int("status", status))
	}

	c.log.Info("sync entry delivered", zap.String("tag", tag), zap.Int("status", status))
	metrics.SyncReplays.WithLabelValues(tag, "delivered").Inc()
	c.updatePendingGauge(ctx)

	if c.notifier != nil && tag == TagContactForm {
		c.notifier.NotifyDelivered(ctx, tag)
	}
	return true, nil
}

// DrainAll replays every tag that has a pending entry.
func (c *Coordinator) DrainAll(ctx context.Context) error {
	tags, err := c.store.Tags(ctx)
	if err != nil {
		return fmt.Errorf("replay: list pending tags: %w", err)
	}

	var errs error
	for _, tag := range tags {
		if _, err := c.OnSync(ctx, tag); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Start schedules the connectivity probe. When the origin answers the probe,
// every pending tag is drained; the probe cadence is the only retry pacing
// the coordinator applies.
func (c *Coordinator) Start() error {
	if _, err := c.cron.AddFunc(c.cfg.ProbeSchedule, func() {
		ctx := context.Background()
		if !c.originReachable(ctx) {
			return
		}
		if err := c.DrainAll(ctx); err != nil {
			c.log.Warn("sync drain failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running drain to complete.
func (c *Coordinator) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

func (c *Coordinator) originReachable(ctx context.Context) bool {
	_, err := c.client.Do(ctx, http.MethodHead, c.cfg.HealthPath, nil, nil)
	return err == nil
}

func (c *Coordinator) buildReplay(tag string, data []byte) (method, url string, header http.Header, body []byte, err error) {
	jsonHeader := http.Header{}
	jsonHeader.Set("Content-Type", "application/json")

	switch tag {
	case TagContactForm:
		return http.MethodPost, c.cfg.ContactPath, jsonHeader, data, nil
	case TagAnalytics:
		return http.MethodPost, c.cfg.AnalyticsPath, jsonHeader, data, nil
	case TagFailedRequest:
		var req ReplayRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return "", "", nil, nil, fmt.Errorf("decode replay request: %w", err)
		}
		if req.Method == "" {
			req.Method = http.MethodPost
		}
		header := http.Header{}
		for key, value := range req.Header {
			header.Set(key, value)
		}
		return req.Method, req.URL, header, req.Body, nil
	default:
		return "", "", nil, nil, fmt.Errorf("unknown sync tag %q", tag)
	}
}

func (c *Coordinator) updatePendingGauge(ctx context.Context) {
	tags, err := c.store.Tags(ctx)
	if err != nil {
		return
	}
	metrics.PendingSyncEntries.Set(float64(len(tags)))
}
