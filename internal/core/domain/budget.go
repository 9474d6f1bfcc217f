package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentCenterBudget is a yearly budget of one payment center.
// Lookups use the (PaymentCenterID, Year) pair; ID stays the record key.
type PaymentCenterBudget struct {
	ID              string
	PaymentCenterID string
	Year            int
	Budget          decimal.Decimal
	Description     string
	Notes           string
}

// BudgetKey is the composite lookup key of a budget record.
func BudgetKey(paymentCenterID string, year int) string {
	return fmt.Sprintf("%s|%d", CanonicalID(paymentCenterID), year)
}

// BudgetKeyOf reads the composite key from a PaymentCenterBudgets record.
// ok is false when either part is missing.
func BudgetKeyOf(r Record) (string, bool) {
	center := CanonicalID(r[FieldPaymentCenterID])
	year, ok := AsFloat(r[FieldYear])
	if center == "" || !ok {
		return "", false
	}
	return BudgetKey(center, int(year)), true
}

// PaymentCenterBudgetFromRecord converts a PaymentCenterBudgets record.
func PaymentCenterBudgetFromRecord(r Record) (PaymentCenterBudget, error) {
	year, ok := AsFloat(r[FieldYear])
	if !ok {
		return PaymentCenterBudget{}, fmt.Errorf("budget %s: invalid year %q", r.ID(), r.String(FieldYear))
	}
	b := PaymentCenterBudget{
		ID:              r.ID(),
		PaymentCenterID: CanonicalID(r[FieldPaymentCenterID]),
		Year:            int(year),
		Description:     r.String("description"),
		Notes:           r.String("notes"),
	}
	if r.Has("budget") {
		amount, err := AsDecimal(r["budget"])
		if err != nil {
			return PaymentCenterBudget{}, fmt.Errorf("budget %s amount: %w", b.ID, err)
		}
		b.Budget = amount
	}
	return b, nil
}

func (PaymentCenterBudget) Collection() string { return PaymentCenterBudgets }

// ToRecord converts the budget to its record.
func (b PaymentCenterBudget) ToRecord() Record {
	return Record{
		FieldID:              b.ID,
		FieldPaymentCenterID: b.PaymentCenterID,
		FieldYear:            b.Year,
		"budget":             b.Budget.InexactFloat64(),
		"description":        b.Description,
		"notes":              b.Notes,
	}
}
