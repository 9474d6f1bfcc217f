package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/google/uuid"
)

// AuditLogger builds AuditLog records. The acting user comes from the request context.
type AuditLogger struct {
	BaseService
	now func() time.Time
}

var _ portssvc.AuditLoggerSvc = (*AuditLogger)(nil)

// NewAuditLogger creates an AuditLogger using the wall clock.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{now: time.Now}
}

// NewAuditLoggerWithClock creates an AuditLogger with a fixed time source.
func NewAuditLoggerWithClock(now func() time.Time) *AuditLogger {
	return &AuditLogger{now: now}
}

// Entry builds the AuditLog record for a mutation. Ids are UUIDv7 so they sort by time.
func (a *AuditLogger) Entry(ctx context.Context, event portssvc.AuditEvent) (domain.Record, error) {
	if event.EntityType == "" || event.EntityID == "" {
		return nil, fmt.Errorf("audit event missing entity reference")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating audit id: %w", err)
	}
	changes, err := json.Marshal(event.Changes)
	if err != nil {
		return nil, fmt.Errorf("serializing audit changes for %s %s: %w", event.EntityType, event.EntityID, err)
	}

	actor := middleware.GetActorFromCtx(ctx)
	entry := domain.AuditEntry{
		ID:          id.String(),
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Action:      event.Action,
		UserID:      actor.UserID,
		Username:    actor.Username,
		Timestamp:   domain.Timestamp(a.now()),
		Changes:     string(changes),
		Description: describe(event),
	}
	a.LogDebug(ctx, "Audit entry built", "action", string(event.Action), "entity_type", event.EntityType, "entity_id", event.EntityID)
	return entry.ToRecord(), nil
}

func describe(event portssvc.AuditEvent) string {
	verb := map[domain.AuditAction]string{
		domain.ActionCreate:  "Created",
		domain.ActionUpdate:  "Updated",
		domain.ActionDelete:  "Deleted",
		domain.ActionApprove: "Approved",
		domain.ActionReject:  "Rejected",
	}[event.Action]
	if verb == "" {
		verb = string(event.Action)
	}
	return fmt.Sprintf("%s %s %s", verb, event.EntityType, event.EntityID)
}
