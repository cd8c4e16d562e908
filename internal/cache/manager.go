package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/internal/models"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
	"github.com/emelmujiro/offline-gateway/pkg/metrics"
)

const plainTextUTF8 = "text/plain; charset=utf-8"

// Request describes one intercepted request as seen by the cache strategies.
// URL is the cache key, kept exactly as the client issued it.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Class  string
}

// Response is what a strategy hands back: proxied, cached, or synthesized.
type Response struct {
	Status      int
	Header      http.Header
	Body        []byte
	FromCache   bool
	Synthesized bool
}

// Fetcher performs the actual origin fetch for a request. A transport-level
// failure (origin unreachable, timeout) is an error; any HTTP status is not.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Config pins the manager to one cache generation. Injected rather than held
// as package globals so managers for different versions can coexist in tests.
type Config struct {
	Generation string
	// ShellURL is the precached application shell document served to failed
	// navigation requests.
	ShellURL string
	// Precache is the install-time manifest; all entries must fetch or the
	// install fails as a whole.
	Precache []string
	// ClassLimits bounds opportunistically cached entries per route class.
	// Zero means unbounded.
	ClassLimits map[string]int
}

// Manager executes the two fetch strategies against the current generation
// and owns generation lifecycle (install, activate).
type Manager struct {
	store Store
	fetch Fetcher
	cfg   Config
	log   *zap.Logger
}

// NewManager constructs a cache manager.
func NewManager(store Store, fetch Fetcher, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	if fetch == nil {
		return nil, errors.New("cache: fetcher is required")
	}
	if cfg.Generation == "" {
		return nil, errors.New("cache: generation is required")
	}
	return &Manager{
		store: store,
		fetch: fetch,
		cfg:   cfg,
		log:   logger.WithModule("cache"),
	}, nil
}

// Generation returns the generation name this manager serves from.
func (m *Manager) Generation() string {
	return m.cfg.Generation
}

// CacheFirst serves from the current generation when possible and only then
// touches the network. A total miss is terminal for the request: the caller
// receives a synthesized 404, never an error.
func (m *Manager) CacheFirst(ctx context.Context, req Request) *Response {
	if obj, ok, err := m.store.Get(ctx, m.cfg.Generation, req.URL); err != nil {
		m.log.Warn("cache lookup failed", zap.String("url", req.URL), zap.Error(err))
	} else if ok {
		metrics.CacheLookups.WithLabelValues("cache_first", "hit").Inc()
		return cachedResponse(obj)
	}
	metrics.CacheLookups.WithLabelValues("cache_first", "miss").Inc()

	resp, err := m.fetch.Fetch(ctx, req)
	if err != nil {
		m.log.Debug("origin unreachable", zap.String("url", req.URL), zap.Error(err))
		metrics.SynthesizedResponses.WithLabelValues("404").Inc()
		return synthesized(http.StatusNotFound, apperrors.ErrAssetUnavailable.Message)
	}

	if resp.Status == http.StatusOK {
		m.warm(ctx, req, resp)
	}
	return resp
}

// NetworkFirst always prefers a fresh origin response, falling back to the
// cache only when the origin is unreachable. A total miss yields a
// synthesized 503 with an offline message.
func (m *Manager) NetworkFirst(ctx context.Context, req Request) *Response {
	resp, err := m.fetch.Fetch(ctx, req)
	if err == nil {
		if resp.Status == http.StatusOK {
			m.warm(ctx, req, resp)
		}
		return resp
	}

	m.log.Debug("origin unreachable, trying cache", zap.String("url", req.URL), zap.Error(err))

	if obj, ok, lookupErr := m.store.Get(ctx, m.cfg.Generation, req.URL); lookupErr != nil {
		m.log.Warn("cache lookup failed", zap.String("url", req.URL), zap.Error(lookupErr))
	} else if ok {
		metrics.CacheLookups.WithLabelValues("network_first", "hit").Inc()
		return cachedResponse(obj)
	}

	metrics.CacheLookups.WithLabelValues("network_first", "miss").Inc()
	metrics.SynthesizedResponses.WithLabelValues("503").Inc()
	return synthesized(http.StatusServiceUnavailable, apperrors.ErrOffline.Message)
}

// ShellFallback proxies a navigation request and serves the precached
// application shell when the origin cannot be reached.
func (m *Manager) ShellFallback(ctx context.Context, req Request) *Response {
	resp, err := m.fetch.Fetch(ctx, req)
	if err == nil {
		return resp
	}

	if obj, ok, lookupErr := m.store.Get(ctx, m.cfg.Generation, m.cfg.ShellURL); lookupErr != nil {
		m.log.Warn("shell lookup failed", zap.Error(lookupErr))
	} else if ok {
		metrics.CacheLookups.WithLabelValues("shell_fallback", "hit").Inc()
		return cachedResponse(obj)
	}

	metrics.CacheLookups.WithLabelValues("shell_fallback", "miss").Inc()
	metrics.SynthesizedResponses.WithLabelValues("503").Inc()
	return synthesized(http.StatusServiceUnavailable, apperrors.ErrOffline.Message)
}

// Install precaches the configured manifest into the current generation.
// All-or-nothing: a single failed fetch aborts the install and commits zero
// entries. A partially cached shell is worse than retrying the install.
func (m *Manager) Install(ctx context.Context) error {
	objs := make([]models.CacheObject, 0, len(m.cfg.Precache))

	for _, url := range m.cfg.Precache {
		resp, err := m.fetch.Fetch(ctx, Request{Method: http.MethodGet, URL: url})
		if err != nil {
			return apperrors.ErrPrecacheFailed.WithInternal(fmt.Errorf("fetch %s: %w", url, err))
		}
		if resp.Status != http.StatusOK {
			return apperrors.ErrPrecacheFailed.WithInternal(fmt.Errorf("fetch %s: status %d", url, resp.Status))
		}

		obj, err := toObject(m.cfg.Generation, url, "precache", resp)
		if err != nil {
			return apperrors.ErrPrecacheFailed.WithInternal(err)
		}
		objs = append(objs, *obj)
	}

	if err := m.store.PutAll(ctx, objs); err != nil {
		return apperrors.ErrPrecacheFailed.WithInternal(err)
	}

	m.log.Info("precache complete",
		zap.String("generation", m.cfg.Generation),
		zap.Int("entries", len(objs)),
	)
	return nil
}

// Activate deletes every generation other than the current one. It must
// complete before the gateway starts serving so clients never observe
// mixed-generation content.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("cache: enumerate generations: %w", err)
	}

	var errs error
	for _, name := range names {
		if name == m.cfg.Generation {
			continue
		}
		if err := m.store.DeleteGeneration(ctx, name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete generation %s: %w", name, err))
			continue
		}
		m.log.Info("deleted stale cache generation", zap.String("generation", name))
	}
	return errs
}

// warm stores a successful response into the current generation, best effort.
// Only GET responses are cacheable.
func (m *Manager) warm(ctx context.Context, req Request, resp *Response) {
	if req.Method != "" && req.Method != http.MethodGet {
		return
	}
	obj, err := toObject(m.cfg.Generation, req.URL, req.Class, resp)
	if err != nil {
		m.log.Warn("cache encode failed", zap.String("url", req.URL), zap.Error(err))
		return
	}
	if err := m.store.Put(ctx, obj); err != nil {
		m.log.Warn("cache write failed", zap.String("url", req.URL), zap.Error(err))
		return
	}

	if limit, ok := m.cfg.ClassLimits[req.Class]; ok && limit > 0 {
		if err := m.store.TrimClass(ctx, m.cfg.Generation, req.Class, limit); err != nil {
			m.log.Warn("cache trim failed", zap.String("class", req.Class), zap.Error(err))
		}
	}
}

func toObject(generation, url, class string, resp *Response) (*models.CacheObject, error) {
	headers, err := json.Marshal(resp.Header)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}

	return &models.CacheObject{
		Generation:  generation,
		URL:         url,
		Status:      resp.Status,
		Headers:     headers,
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Class:       class,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func cachedResponse(obj *models.CacheObject) *Response {
	header := http.Header{}
	if len(obj.Headers) > 0 {
		// Stored headers are best effort; a decode failure falls back to the
		// recorded content type alone.
		_ = json.Unmarshal(obj.Headers, &header)
	}
	if header.Get("Content-Type") == "" && obj.ContentType != "" {
		header.Set("Content-Type", obj.ContentType)
	}

	return &Response{
		Status:    obj.Status,
		Header:    header,
		Body:      obj.Body,
		FromCache: true,
	}
}

func synthesized(status int, message string) *Response {
	header := http.Header{}
	header.Set("Content-Type", plainTextUTF8)
	return &Response{
		Status:      status,
		Header:      header,
		Body:        []byte(message),
		Synthesized: true,
	}
}
