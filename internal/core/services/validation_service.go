package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/utils/accounting"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+?\(?[0-9]{2,3}\)?[-.]?[0-9]{3,4}[-.]?[0-9]{4,6}$`)
	digitsOnly   = regexp.MustCompile(`[^0-9]`)
)

type supplierRules struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Category string `json:"category" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	ABN      string `json:"abn" validate:"omitempty,abn"`
}

type expenseRules struct {
	Description   string  `json:"description" validate:"required"`
	Date          string  `json:"date" validate:"required"`
	Supplier      string  `json:"supplier" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	PaymentType   string  `json:"paymentType" validate:"required"`
	PaymentCenter string  `json:"paymentCenter" validate:"required"`
	Program       string  `json:"program" validate:"required"`
	Status        string  `json:"status"`
	InvoiceDate   string  `json:"invoiceDate" validate:"required_if=Status Invoiced"`
	PaymentDate   string  `json:"paymentDate" validate:"required_if=Status Paid"`
}

type journalRules struct {
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Reference   string `json:"reference" validate:"required"`
}

// transferRules covers journals recorded as a single transfer between payment centers.
type transferRules struct {
	FromPaymentCenter string  `json:"fromPaymentCenter" validate:"required"`
	ToPaymentCenter   string  `json:"toPaymentCenter" validate:"required,nefield=FromPaymentCenter"`
	Amount            float64 `json:"amount" validate:"gt=0"`
}

type userRules struct {
	Username    string   `json:"username" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Role        string   `json:"role" validate:"required"`
	Email       string   `json:"email" validate:"required,email"`
	Permissions []string `json:"permissions" validate:"min=1"`
}

// DataValidator applies the per-collection business rules.
type DataValidator struct {
	validate *validator.Validate
}

var _ portssvc.ValidatorSvc = (*DataValidator)(nil)

// NewDataValidator creates a DataValidator with the custom phone and abn rules registered.
func NewDataValidator() *DataValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.Join(strings.Fields(fl.Field().String()), ""))
	})
	_ = v.RegisterValidation("abn", func(fl validator.FieldLevel) bool {
		return len(digitsOnly.ReplaceAllString(fl.Field().String(), "")) == 11
	})
	return &DataValidator{validate: v}
}

// ValidateRecord checks a full record. Collections without rules always pass.
func (d *DataValidator) ValidateRecord(collection string, rec domain.Record) error {
	switch collection {
	case domain.Suppliers:
		return d.check(supplierRules{
			Name:     strings.TrimSpace(rec.String("name")),
			Code:     strings.TrimSpace(rec.String("code")),
			Category: rec.String("category"),
			Email:    rec.String("email"),
			Phone:    rec.String("phone"),
			ABN:      rec.String("abn"),
		})
	case domain.Expenses:
		return d.validateExpense(rec)
	case domain.JournalEntries:
		return d.validateJournal(rec)
	case domain.Users:
		return d.check(userRules{
			Username:    strings.TrimSpace(rec.String("username")),
			Name:        strings.TrimSpace(rec.String("name")),
			Role:        rec.String("role"),
			Email:       rec.String("email"),
			Permissions: domain.ParsePermissions(rec[domain.FieldPermissions]),
		})
	default:
		return nil
	}
}

// ValidatePatch validates the record as it will look after the patch is applied.
// A patch carrying `lines` replaces the existing ones.
func (d *DataValidator) ValidatePatch(collection string, existing, patch domain.Record) error {
	merged := existing.Clone()
	if merged == nil {
		merged = domain.Record{}
	}
	for k, v := range patch {
		merged[k] = v
	}
	return d.ValidateRecord(collection, merged)
}

// ValidateJournalBalance checks that debits equal credits within tolerance.
func (d *DataValidator) ValidateJournalBalance(lines []domain.Record) error {
	typed := make([]domain.JournalLine, 0, len(lines))
	for i, rec := range lines {
		line, err := domain.JournalLineFromRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", apperrors.ErrValidation, i+1, err)
		}
		typed = append(typed, line)
	}
	return accounting.ValidateJournalBalance(typed)
}

func (d *DataValidator) validateExpense(rec domain.Record) error {
	err := d.check(expenseRules{
		Description:   strings.TrimSpace(rec.String("description")),
		Date:          rec.String("date"),
		Supplier:      rec.String("supplier"),
		Amount:        amountOf(rec["amount"]),
		PaymentType:   rec.String("paymentType"),
		PaymentCenter: rec.String("paymentCenter"),
		Program:       rec.String("program"),
		Status:        rec.String(domain.FieldStatus),
		InvoiceDate:   rec.String("invoiceDate"),
		PaymentDate:   rec.String("paymentDate"),
	})

	var order []string
	if before(rec.String("invoiceDate"), rec.String("date")) {
		order = append(order, "invoiceDate cannot be earlier than date")
	}
	if before(rec.String("paymentDate"), rec.String("invoiceDate")) {
		order = append(order, "paymentDate cannot be earlier than invoiceDate")
	}
	return joinValidation(err, order)
}

func (d *DataValidator) validateJournal(rec domain.Record) error {
	err := d.check(journalRules{
		Description: strings.TrimSpace(rec.String("description")),
		Date:        rec.String("date"),
		Reference:   strings.TrimSpace(rec.String("reference")),
	})

	var extra []string
	if lines, ok := domain.RecordsOf(rec[domain.FieldLines]); ok && len(lines) > 0 {
		if balanceErr := d.ValidateJournalBalance(lines); balanceErr != nil {
			extra = append(extra, strings.TrimPrefix(balanceErr.Error(), apperrors.ErrValidation.Error()+": "))
		}
	} else if transferErr := d.check(transferRules{
		FromPaymentCenter: rec.String("fromPaymentCenter"),
		ToPaymentCenter:   rec.String("toPaymentCenter"),
		Amount:            amountOf(rec["amount"]),
	}); transferErr != nil {
		extra = append(extra, strings.TrimPrefix(transferErr.Error(), apperrors.ErrValidation.Error()+": "))
	}
	return joinValidation(err, extra)
}

// check runs struct validation and renders failures as one ErrValidation.
func (d *DataValidator) check(rules any) error {
	err := d.validate.Struct(rules)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.Replace(fe.Param(), " ", " is ", 1))
	case "email":
		return field + " must be a valid email"
	case "phone":
		return field + " must be a valid phone number"
	case "abn":
		return field + " must contain 11 digits"
	case "gt":
		return field + " must be a positive number"
	case "min":
		return fmt.Sprintf("%s must have at least %s entry", field, fe.Param())
	case "nefield":
		return field + " must differ from " + lowerFirst(fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func joinValidation(err error, extra []string) error {
	if len(extra) == 0 {
		return err
	}
	msg := strings.Join(extra, "; ")
	if err != nil {
		msg = strings.TrimPrefix(err.Error(), apperrors.ErrValidation.Error()+": ") + "; " + msg
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, msg)
}

// amountOf reads a numeric field; unparseable values become -1 so "gt=0" rejects them.
func amountOf(v any) float64 {
	if s, ok := v.(string); ok {
		v = strings.ReplaceAll(s, ",", "")
	}
	f, ok := domain.AsFloat(v)
	if !ok {
		return -1
	}
	return f
}

// before reports whether date a is strictly earlier than b. Unparseable dates never compare.
func before(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	return okA && okB && ta.Before(tb)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano, "02/01/2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
