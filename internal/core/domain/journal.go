package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// LineType is the side of a journal line.
type LineType string

const (
	Debit  LineType = "debit"
	Credit LineType = "credit"
)

// JournalStatus represents the approval state of a journal entry.
type JournalStatus string

const (
	JournalPending  JournalStatus = "Pending"
	JournalApproved JournalStatus = "Approved"
	JournalRejected JournalStatus = "Rejected"
)

// BalanceTolerance is the largest debit/credit difference still treated as balanced.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// JournalLine is one debit or credit row of a journal entry, stored in the JournalLines sheet.
type JournalLine struct {
	ID            string
	JournalID     string
	LineNumber    int
	Type          LineType
	Program       string
	PaymentCenter string
	Amount        decimal.Decimal
	Description   string
}

// JournalEntry is a journal header with its ordered lines attached.
type JournalEntry struct {
	ID          string
	Date        string
	Description string
	Reference   string
	Status      JournalStatus
	TotalAmount decimal.Decimal
	Lines       []JournalLine
	// Extra holds header fields without a dedicated struct field.
	Extra Record
}

// LineID builds the id of the n-th (1-based) line of a journal.
func LineID(journalID string, n int) string {
	return fmt.Sprintf("%s-L%d", journalID, n)
}

// ParseLineType normalizes a line side, accepting any letter case.
func ParseLineType(v any) (LineType, error) {
	switch LineType(strings.ToLower(strings.TrimSpace(AsString(v)))) {
	case Debit:
		return Debit, nil
	case Credit:
		return Credit, nil
	default:
		return "", fmt.Errorf("invalid line type %q", AsString(v))
	}
}

// LineNumberOf reads the lineNumber field, 0 when absent or not numeric.
func LineNumberOf(r Record) int {
	f, ok := AsFloat(r[FieldLineNumber])
	if !ok {
		return 0
	}
	return int(f)
}

// JournalLineFromRecord converts a JournalLines record into its typed form.
func JournalLineFromRecord(r Record) (JournalLine, error) {
	lineType, err := ParseLineType(r["type"])
	if err != nil {
		return JournalLine{}, err
	}
	amount, err := AsDecimal(r["amount"])
	if err != nil {
		return JournalLine{}, fmt.Errorf("line %s amount: %w", r.ID(), err)
	}
	return JournalLine{
		ID:            r.ID(),
		JournalID:     CanonicalID(r[FieldJournalID]),
		LineNumber:    LineNumberOf(r),
		Type:          lineType,
		Program:       r.String("program"),
		PaymentCenter: r.String("paymentCenter"),
		Amount:        amount,
		Description:   r.String("description"),
	}, nil
}

func (JournalLine) Collection() string { return JournalLines }

// ToRecord converts the line to its at-rest record.
func (l JournalLine) ToRecord() Record {
	return Record{
		FieldID:         l.ID,
		FieldJournalID:  l.JournalID,
		FieldLineNumber: l.LineNumber,
		"type":          string(l.Type),
		"program":       l.Program,
		"paymentCenter": l.PaymentCenter,
		"amount":        l.Amount.InexactFloat64(),
		"description":   l.Description,
	}
}

var journalHeaderFields = map[string]bool{
	FieldID: true, "date": true, "description": true, "reference": true,
	FieldStatus: true, FieldTotalAmount: true, FieldLines: true,
}

// JournalEntryFromRecord converts a JournalEntries record, including an attached
// `lines` attribute, into its typed form.
func JournalEntryFromRecord(r Record) (JournalEntry, error) {
	entry := JournalEntry{
		ID:          r.ID(),
		Date:        r.String("date"),
		Description: r.String("description"),
		Reference:   r.String("reference"),
		Status:      JournalStatus(r.String(FieldStatus)),
		Extra:       Record{},
	}
	if r.Has(FieldTotalAmount) {
		total, err := AsDecimal(r[FieldTotalAmount])
		if err != nil {
			return JournalEntry{}, fmt.Errorf("journal %s totalAmount: %w", entry.ID, err)
		}
		entry.TotalAmount = total
	}
	if raw, ok := RecordsOf(r[FieldLines]); ok {
		for _, lr := range raw {
			line, err := JournalLineFromRecord(lr)
			if err != nil {
				return JournalEntry{}, fmt.Errorf("journal %s: %w", entry.ID, err)
			}
			entry.Lines = append(entry.Lines, line)
		}
	}
	for k, v := range r {
		if !journalHeaderFields[k] {
			entry.Extra[k] = v
		}
	}
	return entry, nil
}

func (JournalEntry) Collection() string { return JournalEntries }

// ToRecord converts the entry back into a record with `lines` attached.
func (j JournalEntry) ToRecord() Record {
	r := j.Extra.Clone()
	if r == nil {
		r = Record{}
	}
	r[FieldID] = j.ID
	r["date"] = j.Date
	r["description"] = j.Description
	r["reference"] = j.Reference
	r[FieldStatus] = string(j.Status)
	r[FieldTotalAmount] = j.TotalAmount.InexactFloat64()
	lines := make([]Record, len(j.Lines))
	for i, l := range j.Lines {
		lines[i] = l.ToRecord()
	}
	r[FieldLines] = lines
	return r
}

// SumByType totals the amounts of the lines on one side.
func SumByType(lines []JournalLine, t LineType) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Type == t {
			sum = sum.Add(l.Amount)
		}
	}
	return sum
}

// SortLines orders lines ascending by line number.
func SortLines(lines []Record) {
	sort.SliceStable(lines, func(i, j int) bool {
		return LineNumberOf(lines[i]) < LineNumberOf(lines[j])
	})
}
