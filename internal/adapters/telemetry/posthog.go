// Package telemetry forwards product analytics events to PostHog.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/posthog/posthog-go"
)

// PosthogClientWrapper wraps posthog.Client so callers need not check whether analytics is configured.
type PosthogClientWrapper struct {
	posthogClient posthog.Client
	logger        *slog.Logger
}

var (
	_ middleware.EventSink      = (*PosthogClientWrapper)(nil)
	_ portssvc.SyncListener     = (*PosthogClientWrapper)(nil)
	_ portssvc.MutationListener = (*PosthogClientWrapper)(nil)
)

// InitializePosthogClient returns a wrapper that drops every event when apiKey is empty.
func InitializePosthogClient(apiKey, endpoint string, logger *slog.Logger) *PosthogClientWrapper {
	if apiKey == "" {
		logger.Warn("Posthog API key is empty, not initializing posthog client.")
		return &PosthogClientWrapper{logger: logger}
	}
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		logger.Error("Failed to initialize posthog client", slog.String("error", err.Error()))
		return &PosthogClientWrapper{logger: logger}
	}
	logger.Info("Posthog client initialized", slog.String("endpoint", endpoint))
	return &PosthogClientWrapper{posthogClient: client, logger: logger}
}

func (w *PosthogClientWrapper) IsInitialized() bool {
	return w != nil && w.posthogClient != nil
}

func (w *PosthogClientWrapper) Enqueue(distinctID string, event string, properties map[string]any) {
	if !w.IsInitialized() {
		return
	}
	if w.logger != nil {
		w.logger.Debug("Enqueueing event", slog.String("distinct_id", distinctID), slog.String("event", event))
	}
	if err := w.posthogClient.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil && w.logger != nil {
		w.logger.Warn("Failed to enqueue posthog event", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// Close flushes queued events.
func (w *PosthogClientWrapper) Close() {
	if !w.IsInitialized() {
		return
	}
	_ = w.posthogClient.Close()
}

// OnLoad implements SyncListener.
func (w *PosthogClientWrapper) OnLoad(ctx context.Context, result portssvc.LoadResult, err error) {
	props := map[string]any{
		"source":   string(result.Source),
		"filename": result.Filename,
		"success":  err == nil,
	}
	if result.FallbackReason != "" {
		props["fallback_reason"] = result.FallbackReason
	}
	w.Enqueue(middleware.GetActorFromCtx(ctx).UserID, "session_loaded", props)
}

// OnSave implements SyncListener.
func (w *PosthogClientWrapper) OnSave(ctx context.Context, result portssvc.SaveResult, err error) {
	w.Enqueue(middleware.GetActorFromCtx(ctx).UserID, "session_saved", map[string]any{
		"filename": result.Filename,
		"bytes":    result.Bytes,
		"success":  err == nil,
	})
}

// OnMutation implements MutationListener. Failed mutations are not tracked.
func (w *PosthogClientWrapper) OnMutation(ctx context.Context, collection string, action domain.AuditAction, err error) {
	if err != nil {
		return
	}
	w.Enqueue(middleware.GetActorFromCtx(ctx).UserID, "record_mutated", map[string]any{
		"collection": collection,
		"action":     string(action),
	})
}
