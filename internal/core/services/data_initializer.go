package services

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"gopkg.in/yaml.v3"
)

//go:embed seed/default_dataset.yaml
var defaultSeed []byte

// DataInitializer produces the default dataset from the embedded seed.
type DataInitializer struct {
	BaseService
	seed []byte
	now  func() time.Time
}

var _ portssvc.DataInitializerSvc = (*DataInitializer)(nil)

// NewDataInitializer creates a DataInitializer over the embedded seed.
func NewDataInitializer() *DataInitializer {
	return &DataInitializer{seed: defaultSeed, now: time.Now}
}

// NewDataInitializerFromSeed creates a DataInitializer over a custom YAML seed.
func NewDataInitializerFromSeed(seed []byte, now func() time.Time) *DataInitializer {
	return &DataInitializer{seed: seed, now: now}
}

// DefaultDataset returns the seed in flat at-rest form. Every known collection
// is present. Budgets are assigned to the current year.
func (d *DataInitializer) DefaultDataset(ctx context.Context) (domain.Dataset, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(d.seed, &raw); err != nil {
		return nil, fmt.Errorf("parsing default dataset: %w", err)
	}

	now := d.now()
	ds := make(domain.Dataset, len(raw))
	for name, rows := range raw {
		records := make([]domain.Record, 0, len(rows))
		for _, row := range rows {
			rec := make(domain.Record, len(row))
			for k, v := range row {
				rec[k] = seedValue(v)
			}
			records = append(records, rec)
		}
		ds[name] = records
	}
	for _, name := range domain.KnownCollections() {
		if ds[name] == nil {
			ds[name] = []domain.Record{}
		}
	}

	for _, budget := range ds[domain.PaymentCenterBudgets] {
		if !budget.Has(domain.FieldYear) {
			budget[domain.FieldYear] = float64(now.Year())
		}
		if !budget.Has("createdAt") {
			budget["createdAt"] = domain.Timestamp(now)
		}
	}
	for _, user := range ds[domain.Users] {
		if !user.Has("createdAt") {
			user["createdAt"] = domain.Timestamp(now)
		}
	}

	d.LogInfo(ctx, "Default dataset prepared", "collections", len(ds), "users", len(ds[domain.Users]))
	return ds, nil
}

// seedValue maps YAML scalars onto the types the workbook codec produces.
func seedValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float64, string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return domain.Timestamp(t)
	default:
		return fmt.Sprint(t)
	}
}
