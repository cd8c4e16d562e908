package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emelmujiro/offline-gateway/internal/app"
	"github.com/emelmujiro/offline-gateway/internal/cache"
	"github.com/emelmujiro/offline-gateway/internal/database/testutil"
	"github.com/emelmujiro/offline-gateway/internal/gateway"
	"github.com/emelmujiro/offline-gateway/internal/push"
	"github.com/emelmujiro/offline-gateway/internal/realtime"
	"github.com/emelmujiro/offline-gateway/internal/replay"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	origin *httptest.Server
	cfg    *app.Config
}

func newTestEnv(t *testing.T, mutate func(cfg *app.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>origin</html>"))
	}))
	t.Cleanup(origin.Close)

	cfg := &app.Config{}
	cfg.Origin.BaseURL = origin.URL
	cfg.Origin.Timeout = 2 * time.Second
	cfg.Cache.Generation = "test-v1"
	cfg.Cache.ShellPath = "/"
	cfg.Cache.APIPrefix = "/api/"
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Monitoring.Health.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	fetcher, err := gateway.NewOriginFetcher(cfg.Origin.BaseURL, cfg.Origin.Timeout)
	require.NoError(t, err)

	manager, err := cache.NewManager(cache.NewDatabaseStore(db), fetcher, cache.Config{
		Generation: cfg.Cache.Generation,
		ShellURL:   cfg.Cache.ShellPath,
		Precache:   []string{"/"},
	})
	require.NoError(t, err)

	coordinator, err := replay.NewCoordinator(replay.NewDatabaseStore(db), fetcher, replay.Config{})
	require.NoError(t, err)

	hub := realtime.NewHub()
	pushSvc := push.NewService(hub, push.NewDatabaseSubscriptionStore(db), nil, push.Config{
		AppPath:    "/",
		DefaultURL: "/",
	})

	handler := gateway.NewHandler(
		gateway.NewClassifier(gateway.ClassifierConfig{APIPrefix: cfg.Cache.APIPrefix}),
		manager,
		fetcher,
		coordinator,
		gateway.HandlerConfig{ContactPath: "/api/contact/", AnalyticsPath: "/api/analytics"},
	)

	router, err := NewRouter(Dependencies{
		DB:      db,
		Config:  cfg,
		Gateway: handler,
		Hub:     hub,
		Push:    pushSvc,
		Sync:    coordinator,
	})
	require.NoError(t, err)

	return &testEnv{router: router, db: db, origin: origin, cfg: cfg}
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestNewRouterRequiresCoreDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}

func TestHealthzReportsOK(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = env.do(http.MethodGet, "/healthz/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
	})

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "disabled")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnroutedRequestsProxyToOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/some/page", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "origin")
}

func TestSubscribeLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"endpoint":"https://push.example.com/a","keys":{"p256dh":"k","auth":"s"}}`
	rec := env.do(http.MethodPost, "/api/notifications/subscribe", body, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodDelete, "/api/notifications/subscribe", `{"endpoint":"https://push.example.com/a"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscribeRejectsMissingKeys(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/notifications/subscribe", `{"endpoint":"https://a"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationClickWithNoWindows(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/notifications/click", `{"action":"view","url":"/blog/1"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"action":"open"`)
	require.Contains(t, rec.Body.String(), "/blog/1")
}

func TestPushIngestAcceptsPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/internal/push", `{"title":"t","body":"b"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPushIngestRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/internal/push", "not json", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "BAD_PUSH_PAYLOAD")
}

func TestPushIngestEnforcesBearerToken(t *testing.T) {
	env := newTestEnv(t, func(cfg *app.Config) {
		cfg.Push.IngestBearerToken = "secret-token"
	})

	rec := env.do(http.MethodPost, "/internal/push", `{"title":"t","body":"b"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/internal/push", `{"title":"t","body":"b"}`, map[string]string{"Authorization": "Bearer secret-token"})
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestManualSyncRejectsUnknownTag(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/internal/sync/sync-unknown", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "UNKNOWN_SYNC_TAG")
}

func TestManualSyncDrainsKnownTag(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/internal/sync/"+replay.TagContactForm, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"delivered":false`)
}
