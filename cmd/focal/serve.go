package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/focal/internal/adapter/driving/http"
	"github.com/ericfisherdev/focal/internal/application"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled importer and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Load config, open database, wire services.
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	// 3. Create and start the import scheduler.
	scheduler, err := application.NewScheduler(a.imports, a.cfg.ImportSchedule)
	if err != nil {
		return err
	}
	go scheduler.Start(ctx)

	// 4. Create HTTP handler and server.
	handler := httphandler.NewServeMux(
		httphandler.NewHandler(a.burndowns, scheduler, slog.Default()).WithImportTimeout(a.cfg.ImportTimeout),
		slog.Default(),
	)

	// The import routes extend their own write deadline.
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 5. Log startup complete.
	slog.Info("focal started",
		"version", version,
		"listen_addr", a.cfg.ListenAddr,
		"import_schedule", a.cfg.ImportSchedule,
		"next_import", scheduler.Next(time.Now()).Format(time.RFC3339),
	)

	// 6. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 7. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
