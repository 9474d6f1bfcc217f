package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/telemetry"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/SscSPs/kiosc_finance_app/internal/handlers"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the workbook and serve the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := telemetry.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer events.Close()

	observers := services.Observers{
		Mutations: []portssvc.MutationListener{events},
		Sync:      []portssvc.SyncListener{events},
	}
	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.New()
		observers.Mutations = append(observers.Mutations, recorder)
		observers.Sync = append(observers.Sync, recorder)
	}

	container, err := openServices(ctx, cfg, observers)
	if err != nil {
		return err
	}

	loadCtx, cancel := commandContext(ctx, cfg, logger)
	result, err := container.Sync.Load(loadCtx)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("Initial workbook loaded",
		slog.String("source", string(result.Source)),
		slog.String("filename", result.Filename),
		slog.String("fallback_reason", result.FallbackReason))

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}

	obs := handlers.Observability{Events: events}
	if recorder != nil {
		recorder.WatchSession(container.Sync)
		r.Use(middleware.RequestMetrics(recorder))
		obs.Metrics = recorder.Handler()
	}
	if err := handlers.RegisterRoutes(r, cfg, container, obs); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if container.Sync.HasUnsavedChanges() {
		logger.Warn("Server stopped with unsaved changes; they were not written to the remote store")
	}
	return nil
}
