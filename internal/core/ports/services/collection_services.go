package services

import (
	"context"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
)

// CollectionInfo summarizes one declared collection.
type CollectionInfo struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// CollectionReaderSvc defines the read-only surface of the collection store.
// Reads never fail: unknown collections or ids yield empty results.
type CollectionReaderSvc interface {
	Get(ctx context.Context, collection string, id any) (domain.Record, bool)
	List(ctx context.Context, collection string) []domain.Record
	Filter(ctx context.Context, collection string, field string, value any) []domain.Record
	FindBudget(ctx context.Context, paymentCenterID string, year int) (domain.Record, bool)
	Collections(ctx context.Context) []CollectionInfo
}

// CollectionWriterSvc defines the mutating surface of the collection store.
// Every successful mutation appends exactly one AuditLog record.
type CollectionWriterSvc interface {
	// Create inserts a record. An existing id returns the stored record unchanged.
	Create(ctx context.Context, collection string, record domain.Record) (domain.Record, error)

	// Update shallow-merges patch onto the record. false means no such id.
	Update(ctx context.Context, collection string, id any, patch domain.Record) (bool, error)

	// Delete removes the record. false means no such id.
	Delete(ctx context.Context, collection string, id any) (bool, error)
}

// CollectionStoreSvc is the complete in-memory store, including the hooks
// the session synchronizer uses to swap and snapshot state.
type CollectionStoreSvc interface {
	CollectionReaderSvc
	CollectionWriterSvc

	// Replace installs a reconciled dataset, discarding current state, and
	// returns the version it was installed at.
	Replace(ctx context.Context, ds domain.Dataset) uint64

	// Snapshot returns a deep copy of the current state in at-rest form and its version.
	Snapshot(ctx context.Context) (domain.Dataset, uint64)

	// Version increases on every mutation and replace.
	Version() uint64
}

// MutationListener observes store mutations; err is nil on success.
type MutationListener interface {
	OnMutation(ctx context.Context, collection string, action domain.AuditAction, err error)
}
