package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/focal/internal/adapter/driven/campfire"
	sqliteadapter "github.com/ericfisherdev/focal/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/focal/internal/adapter/driven/tracker"
	"github.com/ericfisherdev/focal/internal/application"
	"github.com/ericfisherdev/focal/internal/config"
	"github.com/ericfisherdev/focal/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "focal",
	Short: "Burndown tracker for Pivotal Tracker projects",
	Long: `focal imports the current iteration of each tracked Pivotal Tracker project
once per schedule tick, keeps one metric per project-local day and announces
new iterations in Campfire.

Configuration is read from FOCAL_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(projectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired adapters and services shared by every subcommand.
type app struct {
	cfg       *config.Config
	db        *sqliteadapter.DB
	telemetry *telemetry.Provider
	imports   *application.ImportService
	burndowns *application.BurndownService
}

// openApp loads configuration, installs the logger and telemetry, opens and
// migrates the database and wires the services.
func openApp(ctx context.Context) (*app, error) {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg))
	slog.Debug("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"import_schedule", cfg.ImportSchedule,
		"tokens_sealed", cfg.HasSecretKey(),
	)

	// 2. Telemetry (no-op unless FOCAL_OTEL_ENABLED=true).
	tp, err := telemetry.Init(ctx, "focal", version, telemetry.Settings{
		Enabled:      cfg.OTelEnabled,
		Stdout:       cfg.OTelStdout,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	// 4. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	slog.Debug("migrations complete", "version", schemaVersion)

	// 5. Wire adapters.
	projects := sqliteadapter.NewProjectRepo(db, cfg.SecretKey)
	iterations := sqliteadapter.NewIterationRepo(db)
	metrics := sqliteadapter.NewMetricRepo(db)

	instruments, err := telemetry.NewImportInstruments(telemetry.Meter(""))
	if err != nil {
		_ = db.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	// 6. Wire services.
	imports := application.NewImportService(
		projects,
		iterations,
		metrics,
		db,
		tracker.NewClient(cfg.TrackerURL, cfg.FetchTimeout),
		campfire.NewClient(cfg.NotifyTimeout),
		application.ImportOptions{
			BaseURL:       cfg.BaseURL,
			FetchTimeout:  cfg.FetchTimeout,
			NotifyTimeout: cfg.NotifyTimeout,
			Concurrency:   cfg.ImportConcurrency,
			Instruments:   instruments,
		},
	)

	return &app{
		cfg:       cfg,
		db:        db,
		telemetry: tp,
		imports:   imports,
		burndowns: application.NewBurndownService(projects, iterations, metrics),
	}, nil
}

// Close flushes telemetry and closes the database.
func (a *app) Close(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
