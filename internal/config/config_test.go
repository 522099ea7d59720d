package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every env var that Load() reads.
var allConfigKeys = []string{
	"FOCAL_LISTEN_ADDR",
	"FOCAL_DB_PATH",
	"FOCAL_BASE_URL",
	"FOCAL_TRACKER_URL",
	"FOCAL_IMPORT_SCHEDULE",
	"FOCAL_FETCH_TIMEOUT",
	"FOCAL_NOTIFY_TIMEOUT",
	"FOCAL_IMPORT_TIMEOUT",
	"FOCAL_IMPORT_CONCURRENCY",
	"FOCAL_SECRET_KEY",
	"FOCAL_LOG_LEVEL",
	"FOCAL_LOG_FORMAT",
	"FOCAL_OTEL_ENABLED",
	"FOCAL_OTEL_STDOUT",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// isolateConfigEnv saves and unsets all config env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "focal.db", cfg.DBPath)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "https://www.pivotaltracker.com/services/v5", cfg.TrackerURL)
	assert.Equal(t, "@hourly", cfg.ImportSchedule)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ImportTimeout)
	assert.Equal(t, 4, cfg.ImportConcurrency)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.HasSecretKey())
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FOCAL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("FOCAL_DB_PATH", "/tmp/test.db")
	t.Setenv("FOCAL_BASE_URL", "https://focal.example.com/")
	t.Setenv("FOCAL_IMPORT_SCHEDULE", "*/15 * * * *")
	t.Setenv("FOCAL_FETCH_TIMEOUT", "5s")
	t.Setenv("FOCAL_NOTIFY_TIMEOUT", "2s")
	t.Setenv("FOCAL_IMPORT_TIMEOUT", "1h")
	t.Setenv("FOCAL_IMPORT_CONCURRENCY", "8")
	t.Setenv("FOCAL_SECRET_KEY", strings.Repeat("ab", 32))
	t.Setenv("FOCAL_LOG_LEVEL", "debug")
	t.Setenv("FOCAL_LOG_FORMAT", "json")
	t.Setenv("FOCAL_OTEL_ENABLED", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "https://focal.example.com", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "*/15 * * * *", cfg.ImportSchedule)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, time.Hour, cfg.ImportTimeout)
	assert.Equal(t, 8, cfg.ImportConcurrency)
	assert.True(t, cfg.HasSecretKey())
	assert.Len(t, cfg.SecretKey, 32)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"base url":       {"FOCAL_BASE_URL", "focal.example.com"},
		"schedule":       {"FOCAL_IMPORT_SCHEDULE", "every hour"},
		"fetch timeout":  {"FOCAL_FETCH_TIMEOUT", "soon"},
		"zero timeout":   {"FOCAL_NOTIFY_TIMEOUT", "0s"},
		"import timeout": {"FOCAL_IMPORT_TIMEOUT", "-1m"},
		"concurrency":    {"FOCAL_IMPORT_CONCURRENCY", "0"},
		"secret key":     {"FOCAL_SECRET_KEY", "deadbeef"},
		"log level":      {"FOCAL_LOG_LEVEL", "chatty"},
		"log format":     {"FOCAL_LOG_FORMAT", "xml"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(kv[0], kv[1])

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}
