package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emelmujiro/offline-gateway/internal/api"
	"github.com/emelmujiro/offline-gateway/internal/app"
	"github.com/emelmujiro/offline-gateway/internal/cache"
	"github.com/emelmujiro/offline-gateway/internal/database"
	"github.com/emelmujiro/offline-gateway/internal/gateway"
	"github.com/emelmujiro/offline-gateway/internal/push"
	"github.com/emelmujiro/offline-gateway/internal/realtime"
	"github.com/emelmujiro/offline-gateway/internal/replay"
	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

// runtimeStack bundles the long-lived components behind the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Cache       *cache.Manager
	Coordinator *replay.Coordinator
	Hub         *realtime.Hub
	Push        *push.Service
	Router      *gin.Engine
}

// bootstrapRuntime opens the store, precaches the shell assets, and wires the
// gateway, sync and push components into a router. Install and Activate run
// to completion before the caller starts listening so clients never see a
// half-populated or mixed-generation cache.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	fetcher, err := gateway.NewOriginFetcher(cfg.Origin.BaseURL, cfg.Origin.Timeout)
	if err != nil {
		return nil, err
	}

	stack.Cache, err = cache.NewManager(cache.NewDatabaseStore(stack.DB), fetcher, cache.Config{
		Generation: cfg.Cache.Generation,
		ShellURL:   cfg.Cache.ShellPath,
		Precache:   cfg.Cache.Precache,
		ClassLimits: map[string]int{
			string(gateway.ClassDynamicAsset): cfg.Cache.Limits.DynamicAsset,
			string(gateway.ClassOther):        cfg.Cache.Limits.Other,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialise cache manager: %w", err)
	}

	if err := stack.Cache.Install(ctx); err != nil {
		return nil, fmt.Errorf("precache install: %w", err)
	}
	if err := stack.Cache.Activate(ctx); err != nil {
		return nil, fmt.Errorf("cache activate: %w", err)
	}

	stack.Hub = realtime.NewHub()

	var sender push.Sender
	if cfg.Push.Enabled {
		sender = push.NewWebPushSender(push.VAPIDConfig{
			Subscriber: cfg.Push.Subscriber,
			PublicKey:  cfg.Push.VAPIDPublicKey,
			PrivateKey: cfg.Push.VAPIDPrivateKey,
			TTLSeconds: cfg.Push.TTLSeconds,
		})
	}
	stack.Push = push.NewService(stack.Hub, push.NewDatabaseSubscriptionStore(stack.DB), sender, push.Config{
		AppPath:    cfg.Push.AppPath,
		DefaultURL: cfg.Push.DefaultURL,
		Icon:       cfg.Push.Icon,
		Badge:      cfg.Push.Badge,
	})

	stack.Coordinator, err = replay.NewCoordinator(
		replay.NewDatabaseStore(stack.DB),
		fetcher,
		replay.Config{
			ProbeSchedule: cfg.Sync.ProbeSchedule,
			ContactPath:   cfg.Sync.ContactPath,
			AnalyticsPath: cfg.Sync.AnalyticsPath,
			HealthPath:    cfg.Origin.HealthPath,
		},
		replay.WithNotifier(stack.Push),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise sync coordinator: %w", err)
	}

	handler := gateway.NewHandler(
		gateway.NewClassifier(gateway.ClassifierConfig{
			APIPrefix:       cfg.Cache.APIPrefix,
			FontHosts:       cfg.Cache.FontHosts,
			AssetExtensions: cfg.Cache.AssetExtensions,
		}),
		stack.Cache,
		fetcher,
		stack.Coordinator,
		gateway.HandlerConfig{
			ContactPath:   cfg.Sync.ContactPath,
			AnalyticsPath: cfg.Sync.AnalyticsPath,
		},
	)

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:      stack.DB,
		Config:  cfg,
		Gateway: handler,
		Hub:     stack.Hub,
		Push:    stack.Push,
		Sync:    stack.Coordinator,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	log.Info("runtime initialised",
		zap.String("generation", cfg.Cache.Generation),
		zap.String("origin", cfg.Origin.BaseURL),
		zap.Bool("push_enabled", cfg.Push.Enabled),
	)
	return stack, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))),
	)
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = cfg.Database.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = cfg.Database.MySQL.Password
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to access database handle during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
