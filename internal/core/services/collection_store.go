package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionStore is the in-memory system of record for one session.
// Ids are compared in canonical string form. Journal headers carry a sorted
// `lines` view that is rebuilt whenever their JournalLines change.
type CollectionStore struct {
	BaseService
	audit     portssvc.AuditLoggerSvc
	listeners []portssvc.MutationListener

	mu          sync.RWMutex
	collections map[string][]domain.Record
	declared    map[string]bool
	version     atomic.Uint64
}

var _ portssvc.CollectionStoreSvc = (*CollectionStore)(nil)

// NewCollectionStore creates an empty store with the known collections declared.
func NewCollectionStore(audit portssvc.AuditLoggerSvc, listeners ...portssvc.MutationListener) *CollectionStore {
	s := &CollectionStore{
		audit:       audit,
		listeners:   listeners,
		collections: make(map[string][]domain.Record),
	}
	s.declared = knownSet()
	return s
}

func knownSet() map[string]bool {
	set := make(map[string]bool)
	for _, name := range domain.KnownCollections() {
		set[name] = true
	}
	return set
}

// Replace installs ds as the complete state. Every collection in ds becomes declared.
func (s *CollectionStore) Replace(ctx context.Context, ds domain.Dataset) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[string][]domain.Record, len(ds))
	s.declared = knownSet()
	for name, records := range ds {
		s.collections[name] = domain.CloneRecords(records)
		s.declared[name] = true
	}
	for _, header := range s.collections[domain.JournalEntries] {
		if _, ok := header[domain.FieldLines]; !ok {
			s.relinkLocked(header.ID())
		}
	}
	v := s.version.Add(1)
	s.LogInfo(ctx, "Collection store replaced", slog.Int("collections", len(ds)), slog.Uint64("version", v))
	return v
}

// Snapshot returns a flattened deep copy of the current state with its version.
func (s *CollectionStore) Snapshot(_ context.Context) (domain.Dataset, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return flattenDataset(domain.Dataset(s.collections)), s.version.Load()
}

// Version implements CollectionStoreSvc.
func (s *CollectionStore) Version() uint64 {
	return s.version.Load()
}

// Get returns a copy of the record with the given id.
func (s *CollectionStore) Get(_ context.Context, collection string, id any) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(collection, domain.CanonicalID(id))
	if i < 0 {
		return nil, false
	}
	return s.collections[collection][i].Clone(), true
}

// List returns a copy of every record in insertion order.
func (s *CollectionStore) List(_ context.Context, collection string) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.CloneRecords(s.collections[collection])
	if out == nil {
		out = []domain.Record{}
	}
	return out
}

// Filter returns records whose field equals value when both are rendered as strings.
// For token list fields such as permissions a record matches when it holds the token.
func (s *CollectionStore) Filter(_ context.Context, collection, field string, value any) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := domain.AsString(value)
	if field == domain.FieldID {
		want = domain.CanonicalID(value)
	}
	out := []domain.Record{}
	for _, rec := range s.collections[collection] {
		if fieldMatches(rec, field, want) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func fieldMatches(rec domain.Record, field, want string) bool {
	switch v := rec[field].(type) {
	case []string:
		for _, token := range v {
			if token == want {
				return true
			}
		}
		return false
	default:
		if field == domain.FieldID {
			return rec.ID() == want
		}
		return domain.AsString(v) == want
	}
}

// FindBudget looks up the budget of a payment center for a year.
func (s *CollectionStore) FindBudget(_ context.Context, paymentCenterID string, year int) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := domain.BudgetKey(paymentCenterID, year)
	for _, rec := range s.collections[domain.PaymentCenterBudgets] {
		if key, ok := domain.BudgetKeyOf(rec); ok && key == want {
			return rec.Clone(), true
		}
	}
	return nil, false
}

// Collections lists the declared collections in sheet order.
func (s *CollectionStore) Collections(_ context.Context) []portssvc.CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.declared))
	for name := range s.declared {
		names = append(names, name)
	}
	infos := make([]portssvc.CollectionInfo, 0, len(names))
	for _, name := range domain.SheetOrder(names) {
		infos = append(infos, portssvc.CollectionInfo{Name: name, Records: len(s.collections[name])})
	}
	return infos
}

// Create inserts record, generating an id when it has none. A record whose id
// already exists is returned unchanged and nothing is written.
// JournalEntries records carrying `lines` are split into a header and numbered JournalLines.
func (s *CollectionStore) Create(ctx context.Context, collection string, record domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writableLocked(collection); err != nil {
		return nil, err
	}

	rec := record.Clone()
	if rec == nil {
		rec = domain.Record{}
	}
	id := rec.ID()
	if id == "" {
		id = uuid.NewString()
	}
	rec[domain.FieldID] = id

	if i := s.indexLocked(collection, id); i >= 0 {
		s.LogWarn(ctx, "Create ignored, id already exists",
			slog.String("collection", collection), slog.String("id", id))
		return s.collections[collection][i].Clone(), nil
	}

	var lines []domain.Record
	replaceLines := false
	switch collection {
	case domain.JournalEntries:
		var err error
		if lines, replaceLines, err = s.journalLinesLocked(id, rec); err != nil {
			s.notify(ctx, collection, domain.ActionCreate, err)
			return nil, err
		}
	case domain.JournalLines:
		normalizeLine(rec)
	case domain.Users:
		if _, ok := rec[domain.FieldPermissions]; ok {
			rec[domain.FieldPermissions] = domain.ParsePermissions(rec[domain.FieldPermissions])
		}
	case domain.PaymentCenterBudgets:
		if err := s.budgetUniqueLocked(id, rec); err != nil {
			s.notify(ctx, collection, domain.ActionCreate, err)
			return nil, err
		}
	}

	changes := rec.Clone()
	if replaceLines {
		changes[domain.FieldLines] = domain.CloneRecords(lines)
	}
	entry, err := s.audit.Entry(ctx, portssvc.AuditEvent{
		Action: domain.ActionCreate, EntityType: collection, EntityID: id, Changes: changes,
	})
	if err != nil {
		err = fmt.Errorf("audit create %s %s: %w", collection, id, err)
		s.notify(ctx, collection, domain.ActionCreate, err)
		return nil, err
	}

	s.collections[collection] = append(s.collections[collection], rec)
	if replaceLines {
		s.removeLinesLocked(id)
		s.collections[domain.JournalLines] = append(s.collections[domain.JournalLines], lines...)
	}
	s.afterWriteLocked(collection, rec, nil)
	s.commitLocked(entry)

	s.LogDebug(ctx, "Record created", slog.String("collection", collection), slog.String("id", id))
	s.notify(ctx, collection, domain.ActionCreate, nil)
	return rec.Clone(), nil
}

// Update shallow-merges patch onto the record with the given id. The id field
// of the patch is ignored. A JournalEntries patch carrying `lines` replaces all
// of the entry's lines.
func (s *CollectionStore) Update(ctx context.Context, collection string, id any, patch domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writableLocked(collection); err != nil {
		return false, err
	}
	key := domain.CanonicalID(id)
	i := s.indexLocked(collection, key)
	if i < 0 {
		return false, nil
	}
	current := s.collections[collection][i]

	patch = patch.Clone()
	if patch == nil {
		patch = domain.Record{}
	}
	delete(patch, domain.FieldID)

	var lines []domain.Record
	replaceLines := false
	if collection == domain.JournalEntries {
		var err error
		if lines, replaceLines, err = s.journalLinesLocked(key, patch); err != nil {
			s.notify(ctx, collection, domain.ActionUpdate, err)
			return false, err
		}
	}

	next := current.Clone()
	for k, v := range patch {
		next[k] = v
	}
	switch collection {
	case domain.Users:
		if _, ok := patch[domain.FieldPermissions]; ok {
			next[domain.FieldPermissions] = domain.ParsePermissions(patch[domain.FieldPermissions])
		}
	case domain.JournalLines:
		normalizeLine(next)
	case domain.PaymentCenterBudgets:
		if err := s.budgetUniqueLocked(key, next); err != nil {
			s.notify(ctx, collection, domain.ActionUpdate, err)
			return false, err
		}
	}

	action := statusAction(current, patch)
	changes := patch.Clone()
	if replaceLines {
		changes[domain.FieldLines] = domain.CloneRecords(lines)
	}
	entry, err := s.audit.Entry(ctx, portssvc.AuditEvent{
		Action: action, EntityType: collection, EntityID: key, Changes: changes,
	})
	if err != nil {
		err = fmt.Errorf("audit update %s %s: %w", collection, key, err)
		s.notify(ctx, collection, action, err)
		return false, err
	}

	s.collections[collection][i] = next
	if replaceLines {
		s.removeLinesLocked(key)
		s.collections[domain.JournalLines] = append(s.collections[domain.JournalLines], lines...)
	}
	s.afterWriteLocked(collection, next, current)
	s.commitLocked(entry)

	s.LogDebug(ctx, "Record updated", slog.String("collection", collection), slog.String("id", key), slog.String("action", string(action)))
	s.notify(ctx, collection, action, nil)
	return true, nil
}

// Delete removes the record with the given id. Deleting a journal header also
// removes its JournalLines.
func (s *CollectionStore) Delete(ctx context.Context, collection string, id any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writableLocked(collection); err != nil {
		return false, err
	}
	key := domain.CanonicalID(id)
	i := s.indexLocked(collection, key)
	if i < 0 {
		return false, nil
	}
	prior := s.collections[collection][i]

	entry, err := s.audit.Entry(ctx, portssvc.AuditEvent{
		Action: domain.ActionDelete, EntityType: collection, EntityID: key, Changes: prior.Clone(),
	})
	if err != nil {
		err = fmt.Errorf("audit delete %s %s: %w", collection, key, err)
		s.notify(ctx, collection, domain.ActionDelete, err)
		return false, err
	}

	records := s.collections[collection]
	remaining := make([]domain.Record, 0, len(records)-1)
	remaining = append(remaining, records[:i]...)
	s.collections[collection] = append(remaining, records[i+1:]...)

	switch collection {
	case domain.JournalEntries:
		removed := s.removeLinesLocked(key)
		s.LogDebug(ctx, "Cascaded journal line delete", slog.String("journal_id", key), slog.Int("lines", removed))
	case domain.JournalLines:
		s.relinkLocked(prior.String(domain.FieldJournalID))
	}
	s.commitLocked(entry)

	s.notify(ctx, collection, domain.ActionDelete, nil)
	return true, nil
}

func (s *CollectionStore) writableLocked(collection string) error {
	if collection == domain.AuditLog {
		return fmt.Errorf("%w: %s", apperrors.ErrReadOnlyCollection, collection)
	}
	if !s.declared[collection] {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownCollection, collection)
	}
	return nil
}

func (s *CollectionStore) indexLocked(collection, id string) int {
	if id == "" {
		return -1
	}
	for i, rec := range s.collections[collection] {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

func (s *CollectionStore) budgetUniqueLocked(id string, rec domain.Record) error {
	key, ok := domain.BudgetKeyOf(rec)
	if !ok {
		return nil
	}
	for _, other := range s.collections[domain.PaymentCenterBudgets] {
		if other.ID() == id {
			continue
		}
		if otherKey, ok := domain.BudgetKeyOf(other); ok && otherKey == key {
			return fmt.Errorf("%w: budget for payment center %s and year %s exists as %s",
				apperrors.ErrDuplicate, rec.String(domain.FieldPaymentCenterID), rec.String(domain.FieldYear), other.ID())
		}
	}
	return nil
}

// journalLinesLocked splits the `lines` of a journal write and checks that
// none of the numbered line ids is held by a line of another journal.
func (s *CollectionStore) journalLinesLocked(journalID string, rec domain.Record) ([]domain.Record, bool, error) {
	lines, present, err := prepareLines(journalID, rec)
	if err != nil || !present {
		return nil, false, err
	}
	for _, line := range lines {
		i := s.indexLocked(domain.JournalLines, line.ID())
		if i < 0 {
			continue
		}
		owner := domain.CanonicalID(s.collections[domain.JournalLines][i][domain.FieldJournalID])
		if owner != journalID {
			return nil, false, fmt.Errorf("%w: journal line %s already belongs to journal %s",
				apperrors.ErrDuplicate, line.ID(), owner)
		}
	}
	return lines, true, nil
}

// afterWriteLocked rebuilds the journal views touched by a write.
func (s *CollectionStore) afterWriteLocked(collection string, rec, prior domain.Record) {
	switch collection {
	case domain.JournalEntries:
		s.relinkLocked(rec.ID())
	case domain.JournalLines:
		s.relinkLocked(rec.String(domain.FieldJournalID))
		if prior != nil && prior.String(domain.FieldJournalID) != rec.String(domain.FieldJournalID) {
			s.relinkLocked(prior.String(domain.FieldJournalID))
		}
	}
}

// relinkLocked attaches the sorted lines of a journal to its header.
func (s *CollectionStore) relinkLocked(journalID string) {
	if journalID == "" {
		return
	}
	i := s.indexLocked(domain.JournalEntries, journalID)
	if i < 0 {
		return
	}
	lines := []domain.Record{}
	for _, line := range s.collections[domain.JournalLines] {
		if domain.CanonicalID(line[domain.FieldJournalID]) == journalID {
			lines = append(lines, line.Clone())
		}
	}
	domain.SortLines(lines)
	s.collections[domain.JournalEntries][i][domain.FieldLines] = lines
}

func (s *CollectionStore) removeLinesLocked(journalID string) int {
	lines := s.collections[domain.JournalLines]
	kept := make([]domain.Record, 0, len(lines))
	for _, line := range lines {
		if domain.CanonicalID(line[domain.FieldJournalID]) != journalID {
			kept = append(kept, line)
		}
	}
	s.collections[domain.JournalLines] = kept
	return len(lines) - len(kept)
}

func (s *CollectionStore) commitLocked(entry domain.Record) {
	s.collections[domain.AuditLog] = append(s.collections[domain.AuditLog], entry)
	s.version.Add(1)
}

func (s *CollectionStore) notify(ctx context.Context, collection string, action domain.AuditAction, err error) {
	for _, l := range s.listeners {
		l.OnMutation(ctx, collection, action, err)
	}
}

// prepareLines strips `lines` from rec and turns them into JournalLines records
// numbered 1..N in input order. totalAmount becomes the sum of the debit lines.
// present is false when rec carried no `lines` attribute; a null value means no lines.
func prepareLines(journalID string, rec domain.Record) ([]domain.Record, bool, error) {
	value, present := rec[domain.FieldLines]
	if !present {
		return nil, false, nil
	}
	var raw []domain.Record
	if value != nil {
		var ok bool
		if raw, ok = domain.RecordsOf(value); !ok {
			return nil, false, fmt.Errorf("%w: journal %s: lines must be a list of objects, got %T",
				apperrors.ErrValidation, journalID, value)
		}
	}
	delete(rec, domain.FieldLines)

	total := decimal.Zero
	lines := make([]domain.Record, 0, len(raw))
	for i, in := range raw {
		line := in.Clone()
		if line == nil {
			line = domain.Record{}
		}
		n := i + 1
		line[domain.FieldID] = domain.LineID(journalID, n)
		line[domain.FieldJournalID] = journalID
		line[domain.FieldLineNumber] = n
		if lineType, err := domain.ParseLineType(line["type"]); err == nil {
			line["type"] = string(lineType)
			if lineType == domain.Debit {
				if amount, err := domain.AsDecimal(line["amount"]); err == nil {
					total = total.Add(amount)
				}
			}
		}
		lines = append(lines, line)
	}
	rec[domain.FieldTotalAmount] = total.InexactFloat64()
	return lines, true, nil
}

func normalizeLine(rec domain.Record) {
	if journalID := domain.CanonicalID(rec[domain.FieldJournalID]); journalID != "" {
		rec[domain.FieldJournalID] = journalID
	}
}

// statusAction maps a status transition to APPROVE or REJECT, otherwise UPDATE.
func statusAction(current, patch domain.Record) domain.AuditAction {
	next, ok := patch[domain.FieldStatus]
	if !ok || domain.AsString(next) == current.String(domain.FieldStatus) {
		return domain.ActionUpdate
	}
	switch domain.JournalStatus(domain.AsString(next)) {
	case domain.JournalApproved:
		return domain.ActionApprove
	case domain.JournalRejected:
		return domain.ActionReject
	default:
		return domain.ActionUpdate
	}
}
