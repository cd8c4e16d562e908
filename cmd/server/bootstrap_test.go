package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emelmujiro/offline-gateway/internal/app"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

func testBootstrapConfig(t *testing.T, originURL string) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Server.Port = 0
	cfg.Origin.BaseURL = originURL
	cfg.Origin.Timeout = 2 * time.Second
	cfg.Origin.HealthPath = "/healthz"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:bootstrap_test?mode=memory&cache=shared&_foreign_keys=1"
	cfg.Cache.Generation = "test-v1"
	cfg.Cache.ShellPath = "/"
	cfg.Cache.Precache = []string{"/", "/manifest.json"}
	cfg.Cache.APIPrefix = "/api/"
	cfg.Sync.ProbeSchedule = "@every 30s"
	cfg.Sync.ContactPath = "/api/contact/"
	cfg.Sync.AnalyticsPath = "/api/analytics"
	cfg.Monitoring.Health.Enabled = true
	return cfg
}

func TestBootstrapRuntimePrecachesAndServes(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>shell</html>"))
	}))
	defer origin.Close()

	cfg := testBootstrapConfig(t, origin.URL)

	stack, err := bootstrapRuntime(context.Background(), cfg, logger.WithModule("test"))
	require.NoError(t, err)
	defer closeDatabase(stack.DB, logger.WithModule("test"))

	// The shell must be servable without the origin once install completed.
	origin.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "shell")
}

func TestBootstrapRuntimeFailsWhenPrecacheUnreachable(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin.Close()

	cfg := testBootstrapConfig(t, origin.URL)
	cfg.Database.DSN = "file:bootstrap_fail_test?mode=memory&cache=shared&_foreign_keys=1"

	_, err := bootstrapRuntime(context.Background(), cfg, logger.WithModule("test"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "precache")
}

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "PostgreSQL"
	cfg.Database.Postgres.Host = " db.internal "
	cfg.Database.Postgres.Port = 5432
	cfg.Database.Postgres.Database = "gateway"
	cfg.Database.Postgres.Username = "gateway"
	cfg.Database.Postgres.Password = "secret"

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "gateway", dbCfg.Name)

	cfg = &app.Config{}
	dbCfg = convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver, "sqlite is the default driver")
}
