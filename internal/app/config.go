package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the offline gateway.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Origin     OriginConfig     `mapstructure:"origin"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Push       PushConfig       `mapstructure:"push"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// OriginConfig describes the upstream origin the gateway fronts.
type OriginConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	HealthPath string        `mapstructure:"health_path"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig pins the current cache generation and the request classifier inputs.
type CacheConfig struct {
	Generation      string           `mapstructure:"generation"`
	ShellPath       string           `mapstructure:"shell_path"`
	Precache        []string         `mapstructure:"precache"`
	APIPrefix       string           `mapstructure:"api_prefix"`
	FontHosts       []string         `mapstructure:"font_hosts"`
	AssetExtensions []string         `mapstructure:"asset_extensions"`
	Limits          CacheLimitConfig `mapstructure:"limits"`
}

// CacheLimitConfig bounds the number of opportunistically cached entries per class.
// Zero disables the bound for that class.
type CacheLimitConfig struct {
	DynamicAsset int `mapstructure:"dynamic_asset"`
	Other        int `mapstructure:"other"`
}

// SyncConfig controls the background sync coordinator.
type SyncConfig struct {
	ProbeSchedule string `mapstructure:"probe_schedule"`
	ContactPath   string `mapstructure:"contact_path"`
	AnalyticsPath string `mapstructure:"analytics_path"`
}

// PushConfig configures notification rendering and web-push delivery.
type PushConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	VAPIDPublicKey    string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey   string `mapstructure:"vapid_private_key"`
	Subscriber        string `mapstructure:"subscriber"`
	AppPath           string `mapstructure:"app_path"`
	DefaultURL        string `mapstructure:"default_url"`
	Icon              string `mapstructure:"icon"`
	Badge             string `mapstructure:"badge"`
	TTLSeconds        int    `mapstructure:"ttl_seconds"`
	IngestBearerToken string `mapstructure:"ingest_bearer_token"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("OFFLINEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(c.Origin.BaseURL) == "" {
		return errors.New("origin.base_url must be configured")
	}
	if strings.TrimSpace(c.Cache.Generation) == "" {
		return errors.New("cache.generation must be configured")
	}
	if len(c.Cache.Precache) == 0 {
		return errors.New("cache.precache must list at least the application shell")
	}

	if c.Push.Enabled {
		if strings.TrimSpace(c.Push.VAPIDPublicKey) == "" || strings.TrimSpace(c.Push.VAPIDPrivateKey) == "" {
			return errors.New("push.vapid_public_key and push.vapid_private_key must be configured when push is enabled")
		}
		if subscriber := strings.TrimSpace(c.Push.Subscriber); subscriber != "" {
			if err := validator.New().Var(subscriber, "email"); err != nil {
				return errors.New("push.subscriber must be an email address")
			}
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("origin.base_url", "")
	v.SetDefault("origin.timeout", "10s")
	v.SetDefault("origin.health_path", "/healthz")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/offline-gateway.sqlite")

	v.SetDefault("cache.generation", "emelmujiro-v1")
	v.SetDefault("cache.shell_path", "/")
	v.SetDefault("cache.precache", []string{
		"/",
		"/static/css/main.css",
		"/static/js/main.js",
		"/manifest.json",
		"/favicon.ico",
		"/logo192.png",
		"/logo512.png",
	})
	v.SetDefault("cache.api_prefix", "/api/")
	v.SetDefault("cache.font_hosts", []string{
		"fonts.googleapis.com",
		"fonts.gstatic.com",
	})
	v.SetDefault("cache.asset_extensions", []string{
		".png", ".jpg", ".jpeg", ".svg", ".woff", ".woff2",
	})
	v.SetDefault("cache.limits.dynamic_asset", 50)
	v.SetDefault("cache.limits.other", 0)

	v.SetDefault("sync.probe_schedule", "@every 30s")
	v.SetDefault("sync.contact_path", "/api/contact/")
	v.SetDefault("sync.analytics_path", "/api/analytics")

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.app_path", "/")
	v.SetDefault("push.default_url", "/")
	v.SetDefault("push.icon", "/logo192.png")
	v.SetDefault("push.badge", "/logo192.png")
	v.SetDefault("push.ttl_seconds", 3600)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
