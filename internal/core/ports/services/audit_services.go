package services

import (
	"context"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
)

// AuditEvent describes a mutation to be recorded.
type AuditEvent struct {
	Action     domain.AuditAction
	EntityType string
	EntityID   string
	// Changes is serialized into the entry: the created record, the patch, or the deleted record.
	Changes any
}

// AuditLoggerSvc builds AuditLog records for store mutations.
// An error means the mutation must be treated as failed.
type AuditLoggerSvc interface {
	Entry(ctx context.Context, event AuditEvent) (domain.Record, error)
}
