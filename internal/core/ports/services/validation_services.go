package services

import "github.com/SscSPs/kiosc_finance_app/internal/core/domain"

// ValidatorSvc applies the business checks callers run before writing to the store.
type ValidatorSvc interface {
	// ValidateRecord checks a full record of the given collection.
	ValidateRecord(collection string, record domain.Record) error

	// ValidatePatch checks the fields a patch touches, e.g. replaced journal lines.
	ValidatePatch(collection string, existing, patch domain.Record) error

	// ValidateJournalBalance checks that debits equal credits within tolerance.
	ValidateJournalBalance(lines []domain.Record) error
}
