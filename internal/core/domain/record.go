package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one row of a collection: a flat mapping of field name to scalar value.
// In memory a few reserved fields hold structured values (journal `lines`, user `permissions`).
type Record map[string]any

// Dataset maps collection names to their ordered records.
type Dataset map[string][]Record

// ID returns the canonical string form of the record's id field.
func (r Record) ID() string {
	return CanonicalID(r[FieldID])
}

// String returns the string form of a field, "" when absent.
func (r Record) String(field string) string {
	return AsString(r[field])
}

// Has reports whether the field is present and not the empty string.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return false
	}
	return AsString(v) != ""
}

// Clone copies the record. Nested record slices and string slices are copied too.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return Record(t).Clone()
	case []Record:
		return CloneRecords(t)
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// CloneRecords deep-copies a record slice.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// Clone deep-copies the dataset.
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for name, records := range d {
		out[name] = CloneRecords(records)
		if out[name] == nil {
			out[name] = []Record{}
		}
	}
	return out
}

// RecordsOf converts the loosely typed shapes a record list can arrive in
// (decoded JSON, YAML or already-typed slices) into []Record.
func RecordsOf(v any) ([]Record, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []Record:
		return t, true
	case []map[string]any:
		out := make([]Record, len(t))
		for i := range t {
			out[i] = Record(t[i])
		}
		return out, true
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			switch m := item.(type) {
			case Record:
				out = append(out, m)
			case map[string]any:
				out = append(out, Record(m))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// CanonicalID normalizes an identifier so numeric ids decoded from a workbook
// and string ids generated by clients compare equal.
func CanonicalID(v any) string {
	return strings.TrimSpace(AsString(v))
}

// AsString renders a scalar the way it is compared and filtered.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(TimestampLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsFloat extracts a numeric value from a number or numeric string.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case decimal.Decimal:
		return t.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsDecimal parses a money amount from a number or numeric string.
func AsDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt(int64(t)), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty amount")
		}
		return decimal.NewFromString(s)
	case nil:
		return decimal.Zero, fmt.Errorf("missing amount")
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

// TimestampLayout is the ISO-8601 form used for generated timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way audit entries and created-at fields store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
