// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string
	DBPath            string
	BaseURL           string
	TrackerURL        string
	ImportSchedule    string
	FetchTimeout      time.Duration
	NotifyTimeout     time.Duration
	ImportTimeout     time.Duration // write deadline of the on-demand import routes
	ImportConcurrency int
	SecretKey         []byte // nil when FOCAL_SECRET_KEY is unset
	LogLevel          slog.Level
	LogFormat         string
	OTelEnabled       bool
	OTelStdout        bool
	OTLPEndpoint      string
}

// HasSecretKey reports whether stored tokens are sealed at rest.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. Defaults: FOCAL_LISTEN_ADDR (127.0.0.1:8080),
// FOCAL_DB_PATH (focal.db), FOCAL_BASE_URL (http://localhost:8080),
// FOCAL_IMPORT_SCHEDULE (@hourly), FOCAL_FETCH_TIMEOUT (30s),
// FOCAL_NOTIFY_TIMEOUT (10s), FOCAL_IMPORT_TIMEOUT (15m),
// FOCAL_IMPORT_CONCURRENCY (4).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("FOCAL_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:            envOr("FOCAL_DB_PATH", "focal.db"),
		BaseURL:           strings.TrimRight(envOr("FOCAL_BASE_URL", "http://localhost:8080"), "/"),
		TrackerURL:        envOr("FOCAL_TRACKER_URL", "https://www.pivotaltracker.com/services/v5"),
		ImportSchedule:    envOr("FOCAL_IMPORT_SCHEDULE", "@hourly"),
		FetchTimeout:      30 * time.Second,
		NotifyTimeout:     10 * time.Second,
		ImportTimeout:     15 * time.Minute,
		ImportConcurrency: 4,
		LogLevel:          slog.LevelInfo,
		LogFormat:         envOr("FOCAL_LOG_FORMAT", "text"),
		OTelEnabled:       os.Getenv("FOCAL_OTEL_ENABLED") == "true",
		OTelStdout:        os.Getenv("FOCAL_OTEL_STDOUT") == "true",
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}

	if _, err := cron.ParseStandard(cfg.ImportSchedule); err != nil {
		return nil, fmt.Errorf("FOCAL_IMPORT_SCHEDULE has invalid schedule %q: %w", cfg.ImportSchedule, err)
	}

	var err error
	if cfg.FetchTimeout, err = durationEnv("FOCAL_FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = durationEnv("FOCAL_NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return nil, err
	}
	if cfg.ImportTimeout, err = durationEnv("FOCAL_IMPORT_TIMEOUT", cfg.ImportTimeout); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("FOCAL_IMPORT_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("FOCAL_IMPORT_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.ImportConcurrency = n
	}

	if v := os.Getenv("FOCAL_SECRET_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("FOCAL_SECRET_KEY must be 64 hex characters (32 bytes)")
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("FOCAL_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("FOCAL_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("FOCAL_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FOCAL_BASE_URL must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
