package accounting

import (
	"errors"
	"fmt"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ErrJournalUnbalanced is returned when the debit and credit totals of a journal differ.
var ErrJournalUnbalanced = fmt.Errorf("%w: journal entries are unbalanced", apperrors.ErrValidation)

// CalculateTotalAmount is the stored totalAmount of a journal: the sum of its debit lines.
func CalculateTotalAmount(lines []domain.JournalLine) decimal.Decimal {
	return domain.SumByType(lines, domain.Debit)
}

// ValidateJournalBalance checks that a journal has at least two positive lines
// and that debits equal credits within domain.BalanceTolerance.
func ValidateJournalBalance(lines []domain.JournalLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: journal must have at least two lines", apperrors.ErrValidation)
	}

	var errs []error
	for i, line := range lines {
		if line.Amount.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, fmt.Errorf("line %d: amount must be positive", i+1))
		}
		if line.Type != domain.Debit && line.Type != domain.Credit {
			errs = append(errs, fmt.Errorf("line %d: type must be debit or credit", i+1))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, errors.Join(errs...))
	}

	debits := domain.SumByType(lines, domain.Debit)
	credits := domain.SumByType(lines, domain.Credit)
	if debits.Sub(credits).Abs().GreaterThan(domain.BalanceTolerance) {
		return fmt.Errorf("%w (debits %s, credits %s)", ErrJournalUnbalanced, debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}
