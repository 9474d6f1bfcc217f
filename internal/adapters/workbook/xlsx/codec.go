// Package xlsx implements the workbook codec on top of excelize.
package xlsx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Codec converts between .xlsx bytes and collections of flat records.
// Every sheet maps to one collection; the first row of a sheet is its header.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

var _ portsrepo.WorkbookCodec = (*Codec)(nil)

// Decode parses every sheet of the workbook.
// Empty cells decode to "", numbers to float64 and date-formatted numbers to ISO-8601 strings.
func (c *Codec) Decode(data []byte) (domain.Dataset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", apperrors.ErrMalformedWorkbook)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedWorkbook, err)
	}
	defer f.Close()

	d := &sheetDecoder{file: f, dateStyles: map[int]bool{}}
	ds := domain.Dataset{}
	for _, sheet := range f.GetSheetList() {
		records, err := d.decodeSheet(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", apperrors.ErrMalformedWorkbook, sheet, err)
		}
		ds[sheet] = records
	}
	return ds, nil
}

type sheetDecoder struct {
	file       *excelize.File
	dateStyles map[int]bool
}

func (d *sheetDecoder) decodeSheet(sheet string) ([]domain.Record, error) {
	rows, err := d.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	records := []domain.Record{}
	if len(rows) == 0 {
		return records, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if isBlankRow(row) {
			continue
		}
		rec := make(domain.Record, len(header))
		for col, name := range header {
			if name == "" {
				continue
			}
			raw := ""
			if col < len(row) {
				raw = row[col]
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+1)
			if err != nil {
				return nil, err
			}
			value, err := d.cellValue(sheet, cell, raw)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", cell, err)
			}
			rec[name] = value
		}
		records = append(records, rec)
	}
	return records, nil
}

func (d *sheetDecoder) cellValue(sheet, cell, raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	cellType, err := d.file.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return raw, nil
	case excelize.CellTypeBool:
		return strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeDate:
		return normalizeISODate(raw), nil
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, nil
	}
	isDate, err := d.isDateCell(sheet, cell)
	if err != nil {
		return nil, err
	}
	if isDate {
		t, err := excelize.ExcelDateToTime(num, false)
		if err != nil {
			return nil, err
		}
		return isoDate(t), nil
	}
	return num, nil
}

func (d *sheetDecoder) isDateCell(sheet, cell string) (bool, error) {
	styleID, err := d.file.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return false, err
	}
	if cached, ok := d.dateStyles[styleID]; ok {
		return cached, nil
	}
	style, err := d.file.GetStyle(styleID)
	if err != nil {
		return false, err
	}
	isDate := isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	d.dateStyles[styleID] = isDate
	return isDate, nil
}

// isDateNumFmt recognizes the built-in date/time number formats and custom
// format codes made of date tokens.
func isDateNumFmt(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := strings.ToLower(*custom)
		// Drop quoted literals and bracketed sections such as colors or locales.
		var b strings.Builder
		inQuote, inBracket := false, false
		for _, r := range code {
			switch {
			case r == '"':
				inQuote = !inQuote
			case r == '[' && !inQuote:
				inBracket = true
			case r == ']' && !inQuote:
				inBracket = false
			case !inQuote && !inBracket:
				b.WriteRune(r)
			}
		}
		cleaned := b.String()
		return strings.ContainsAny(cleaned, "dy") || strings.Contains(cleaned, "mm") && strings.Contains(cleaned, "h")
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

func isoDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return domain.Timestamp(t)
}

func normalizeISODate(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return isoDate(t)
		}
	}
	return raw
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Encode writes one sheet per collection, known collections first.
// Headers are the union of the keys seen in the collection; records missing a
// column get an empty cell. Empty collections are written as header-only sheets
// so they survive a round trip.
func (c *Codec) Encode(ds domain.Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	names := make([]string, 0, len(ds))
	for name := range ds {
		names = append(names, name)
	}
	names = domain.SheetOrder(names)

	for i, name := range names {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("naming sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("creating sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, ds[name]); err != nil {
			return nil, fmt.Errorf("writing sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, records []domain.Record) error {
	header := Columns(sheet, records)
	if len(header) == 0 {
		return nil
	}
	headerRow := make([]any, len(header))
	for i, h := range header {
		if err := checkText(h); err != nil {
			return fmt.Errorf("column %q: %w", h, err)
		}
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}
	for r, rec := range records {
		row := make([]any, len(header))
		for i, col := range header {
			row[i] = cellOut(rec[col])
			if text, ok := row[i].(string); ok {
				if err := checkText(text); err != nil {
					cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
					return fmt.Errorf("cell %s (%s of record %s): %w", cell, col, rec.ID(), err)
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// Columns derives the header row of a collection. Reserved collections keep
// their documented column order; remaining keys follow alphabetically.
// An empty reserved collection gets its full documented header.
func Columns(collection string, records []domain.Record) []string {
	preferred := domain.ColumnOrder(collection)
	if len(records) == 0 {
		if domain.IsKnownCollection(collection) && len(preferred) > 1 {
			return preferred
		}
		return nil
	}

	seen := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for _, p := range preferred {
		if seen[p] {
			cols = append(cols, p)
			delete(seen, p)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// checkText rejects strings a worksheet cannot hold unchanged: excelize cuts
// text longer than TotalCellChars UTF-16 units, and XML 1.0 has no encoding
// for most control characters.
func checkText(s string) error {
	units := 0
	for i, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: character %U at byte %d cannot be stored in a workbook", apperrors.ErrValidation, r, i)
		}
		units += utf16.RuneLen(r)
	}
	if units > excelize.TotalCellChars {
		return fmt.Errorf("%w: text of %d characters exceeds the workbook cell limit of %d",
			apperrors.ErrValidation, units, excelize.TotalCellChars)
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func cellOut(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, int, int32, int64, uint, uint32, uint64, float32:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return t
	case decimal.Decimal:
		return t.InexactFloat64()
	case time.Time:
		return domain.Timestamp(t)
	case []string:
		return strings.Join(t, ",")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
