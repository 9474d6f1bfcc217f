package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/google/uuid"
)

// Reconciler turns decoded sheets into the shape the collection store expects
// and flattens store snapshots back into sheet rows.
type Reconciler struct {
	BaseService
}

var _ portssvc.ReconcilerSvc = (*Reconciler)(nil)

// NewReconciler creates a Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile deduplicates every collection by id (last occurrence wins),
// links journal lines to their headers and materializes user permissions.
// The input is not modified.
func (r *Reconciler) Reconcile(ctx context.Context, raw domain.Dataset) domain.Dataset {
	out := make(domain.Dataset, len(raw)+len(domain.RequiredCollections()))
	for name, records := range raw {
		if name == domain.JournalLines {
			out[name] = r.reconcileLines(ctx, records)
			continue
		}
		out[name] = r.dedupe(ctx, name, records)
	}
	for _, name := range domain.RequiredCollections() {
		if _, ok := out[name]; !ok {
			out[name] = []domain.Record{}
		}
	}

	for _, user := range out[domain.Users] {
		user[domain.FieldPermissions] = domain.ParsePermissions(user[domain.FieldPermissions])
	}

	linkJournalLines(out[domain.JournalEntries], out[domain.JournalLines])
	return out
}

// Flatten returns a copy of ds in at-rest form: journal headers without their
// `lines` view and permissions joined into comma strings.
func (r *Reconciler) Flatten(ds domain.Dataset) domain.Dataset {
	return flattenDataset(ds)
}

func (r *Reconciler) dedupe(ctx context.Context, collection string, records []domain.Record) []domain.Record {
	position := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rec = rec.Clone()
		id := rec.ID()
		if id == "" {
			id = uuid.NewString()
		}
		rec[domain.FieldID] = id
		if i, ok := position[id]; ok {
			// Last occurrence wins and takes the later position.
			out[i] = nil
			dropped++
		}
		position[id] = len(out)
		out = append(out, rec)
	}
	if dropped > 0 {
		r.LogWarn(ctx, "Dropped duplicate records during reconciliation",
			slog.String("collection", collection), slog.Int("duplicates", dropped))
		out = compact(out)
	}
	return out
}

func (r *Reconciler) reconcileLines(ctx context.Context, records []domain.Record) []domain.Record {
	normalized := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rec = rec.Clone()
		journalID := domain.CanonicalID(rec[domain.FieldJournalID])
		if journalID != "" {
			rec[domain.FieldJournalID] = journalID
		}
		if !rec.Has(domain.FieldID) && journalID != "" && domain.LineNumberOf(rec) > 0 {
			rec[domain.FieldID] = domain.LineID(journalID, domain.LineNumberOf(rec))
		}
		normalized = append(normalized, rec)
	}
	lines := r.dedupe(ctx, domain.JournalLines, normalized)

	// A second pass on the composite key; ids alone do not stop two rows claiming the same slot.
	position := make(map[string]int, len(lines))
	out := make([]domain.Record, 0, len(lines))
	dropped := 0
	for _, rec := range lines {
		journalID := rec.String(domain.FieldJournalID)
		if journalID == "" {
			out = append(out, rec)
			continue
		}
		key := fmt.Sprintf("%s#%d", journalID, domain.LineNumberOf(rec))
		if i, ok := position[key]; ok {
			out[i] = nil
			dropped++
		}
		position[key] = len(out)
		out = append(out, rec)
	}
	if dropped > 0 {
		r.LogWarn(ctx, "Dropped journal lines sharing a line number",
			slog.Int("duplicates", dropped))
		out = compact(out)
	}
	return out
}

// linkJournalLines attaches to every header a sorted copy of its lines.
// Lines whose header is missing stay in the lines collection only.
func linkJournalLines(headers, lines []domain.Record) {
	byJournal := make(map[string][]domain.Record)
	for _, line := range lines {
		journalID := domain.CanonicalID(line[domain.FieldJournalID])
		if journalID == "" {
			continue
		}
		byJournal[journalID] = append(byJournal[journalID], line.Clone())
	}
	for _, header := range headers {
		group := byJournal[header.ID()]
		if group == nil {
			group = []domain.Record{}
		}
		domain.SortLines(group)
		header[domain.FieldLines] = group
	}
}

// flattenDataset deep-copies ds into its at-rest form.
func flattenDataset(ds domain.Dataset) domain.Dataset {
	out := ds.Clone()
	for _, header := range out[domain.JournalEntries] {
		delete(header, domain.FieldLines)
	}
	for _, user := range out[domain.Users] {
		if _, ok := user[domain.FieldPermissions]; ok {
			user[domain.FieldPermissions] = domain.JoinPermissions(domain.ParsePermissions(user[domain.FieldPermissions]))
		}
	}
	return out
}

func compact(records []domain.Record) []domain.Record {
	out := records[:0]
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}
