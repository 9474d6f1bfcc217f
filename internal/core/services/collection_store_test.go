package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mock AuditLogger ---
type MockAuditLogger struct {
	mock.Mock
}

var _ portssvc.AuditLoggerSvc = (*MockAuditLogger)(nil)

func (m *MockAuditLogger) Entry(ctx context.Context, event portssvc.AuditEvent) (domain.Record, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Record), args.Error(1)
}

type mutationCall struct {
	collection string
	action     domain.AuditAction
	err        error
}

type recordingMutationListener struct {
	calls []mutationCall
}

func (l *recordingMutationListener) OnMutation(_ context.Context, collection string, action domain.AuditAction, err error) {
	l.calls = append(l.calls, mutationCall{collection: collection, action: action, err: err})
}

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func storeFixture() domain.Dataset {
	return domain.Dataset{
		domain.Users: {
			{"id": 1.0, "username": "admin", "name": "Administrator", "permissions": "read,write"},
		},
		domain.Suppliers: {
			{"id": "SUP001", "name": "Tech Solutions Inc", "category": "1"},
		},
		domain.JournalEntries: {
			{"id": "JE001", "description": "Opening balance", "status": "Pending", "totalAmount": 5000.0},
		},
		domain.JournalLines: {
			{"id": "JE001-L2", "journalId": "JE001", "lineNumber": 2.0, "type": "credit", "amount": 5000.0},
			{"id": "JE001-L1", "journalId": "JE001", "lineNumber": 1.0, "type": "debit", "amount": 5000.0},
		},
		domain.PaymentCenterBudgets: {
			{"id": "PCB001", "paymentCenterId": "1", "year": 2024.0, "budget": 50000.0},
		},
		"Custom": {
			{"id": "C1", "value": "x"},
		},
	}
}

type CollectionStoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	listener  *recordingMutationListener
	store     *services.CollectionStore
	installed uint64
}

func (suite *CollectionStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.listener = &recordingMutationListener{}
	suite.store = services.NewCollectionStore(services.NewAuditLoggerWithClock(func() time.Time { return fixedNow }), suite.listener)
	suite.installed = suite.store.Replace(suite.ctx, services.NewReconciler().Reconcile(suite.ctx, storeFixture()))
}

func (suite *CollectionStoreTestSuite) auditLog() []domain.Record {
	return suite.store.List(suite.ctx, domain.AuditLog)
}

func (suite *CollectionStoreTestSuite) TestCreate_GeneratesIDAndAudits() {
	created, err := suite.store.Create(suite.ctx, domain.Suppliers, domain.Record{"name": "Office Supplies Co"})
	suite.Require().NoError(err)
	suite.NotEmpty(created.ID())

	got, ok := suite.store.Get(suite.ctx, domain.Suppliers, created.ID())
	suite.Require().True(ok)
	suite.Equal("Office Supplies Co", got["name"])
	suite.Len(suite.store.List(suite.ctx, domain.Suppliers), 2)

	entries := suite.auditLog()
	suite.Require().Len(entries, 1)
	entry := domain.AuditEntryFromRecord(entries[0])
	suite.Equal(domain.ActionCreate, entry.Action)
	suite.Equal(domain.Suppliers, entry.EntityType)
	suite.Equal(created.ID(), entry.EntityID)
	suite.Equal("2024-03-15T09:30:00.000Z", entry.Timestamp)
	suite.Equal(suite.installed+1, suite.store.Version())
}

func (suite *CollectionStoreTestSuite) TestCreate_ExistingIDReturnsStoredRecord() {
	got, err := suite.store.Create(suite.ctx, domain.Suppliers, domain.Record{"id": "SUP001", "name": "Someone Else"})
	suite.Require().NoError(err)
	suite.Equal("Tech Solutions Inc", got["name"])
	suite.Len(suite.store.List(suite.ctx, domain.Suppliers), 1)
	suite.Empty(suite.auditLog())
	suite.Equal(suite.installed, suite.store.Version())
}

func (suite *CollectionStoreTestSuite) TestGet_NumericAndStringIDsMatch() {
	_, ok := suite.store.Get(suite.ctx, domain.Users, "1")
	suite.True(ok)
	_, ok = suite.store.Get(suite.ctx, domain.Users, 1)
	suite.True(ok)
	_, ok = suite.store.Get(suite.ctx, domain.Users, 1.0)
	suite.True(ok)
	_, ok = suite.store.Get(suite.ctx, domain.Users, "2")
	suite.False(ok)
}

func (suite *CollectionStoreTestSuite) TestReads_ReturnCopies() {
	got, ok := suite.store.Get(suite.ctx, domain.Suppliers, "SUP001")
	suite.Require().True(ok)
	got["name"] = "Mutated"

	list := suite.store.List(suite.ctx, domain.Suppliers)
	list[0]["name"] = "Mutated too"

	again, _ := suite.store.Get(suite.ctx, domain.Suppliers, "SUP001")
	suite.Equal("Tech Solutions Inc", again["name"])
}

func (suite *CollectionStoreTestSuite) TestReads_UnknownCollectionIsEmpty() {
	list := suite.store.List(suite.ctx, "Nope")
	suite.NotNil(list)
	suite.Empty(list)
	_, ok := suite.store.Get(suite.ctx, "Nope", "1")
	suite.False(ok)
	suite.Empty(suite.store.Filter(suite.ctx, "Nope", "id", "1"))
}

func (suite *CollectionStoreTestSuite) TestUpdate_MergesAndIgnoresPatchID() {
	ok, err := suite.store.Update(suite.ctx, domain.Suppliers, "SUP001", domain.Record{"id": "HIJACK", "name": "Renamed"})
	suite.Require().NoError(err)
	suite.True(ok)

	got, found := suite.store.Get(suite.ctx, domain.Suppliers, "SUP001")
	suite.Require().True(found)
	suite.Equal("Renamed", got["name"])
	suite.Equal("1", got["category"])
	_, found = suite.store.Get(suite.ctx, domain.Suppliers, "HIJACK")
	suite.False(found)

	entries := suite.auditLog()
	suite.Require().Len(entries, 1)
	suite.Equal(string(domain.ActionUpdate), entries[0]["action"])
	suite.JSONEq(`{"name":"Renamed"}`, entries[0]["changes"].(string))
}

func (suite *CollectionStoreTestSuite) TestUpdateAndDelete_MissingIDReturnsFalse() {
	ok, err := suite.store.Update(suite.ctx, domain.Suppliers, "SUP999", domain.Record{"name": "x"})
	suite.NoError(err)
	suite.False(ok)

	ok, err = suite.store.Delete(suite.ctx, domain.Suppliers, "SUP999")
	suite.NoError(err)
	suite.False(ok)

	suite.Empty(suite.auditLog())
	suite.Equal(suite.installed, suite.store.Version())
}

func (suite *CollectionStoreTestSuite) TestDelete_RemovesRecordAndAudits() {
	ok, err := suite.store.Delete(suite.ctx, domain.Suppliers, "SUP001")
	suite.Require().NoError(err)
	suite.True(ok)

	_, found := suite.store.Get(suite.ctx, domain.Suppliers, "SUP001")
	suite.False(found)

	entries := suite.auditLog()
	suite.Require().Len(entries, 1)
	suite.Equal(string(domain.ActionDelete), entries[0]["action"])
	suite.Equal("Deleted Suppliers SUP001", entries[0]["description"])
}

func (suite *CollectionStoreTestSuite) TestAuditLog_IsReadOnly() {
	_, err := suite.store.Create(suite.ctx, domain.AuditLog, domain.Record{"action": "CREATE"})
	suite.ErrorIs(err, apperrors.ErrReadOnlyCollection)

	_, err = suite.store.Update(suite.ctx, domain.AuditLog, "x", domain.Record{"action": "DELETE"})
	suite.ErrorIs(err, apperrors.ErrReadOnlyCollection)

	_, err = suite.store.Delete(suite.ctx, domain.AuditLog, "x")
	suite.ErrorIs(err, apperrors.ErrReadOnlyCollection)
}

func (suite *CollectionStoreTestSuite) TestMutations_RequireDeclaredCollection() {
	_, err := suite.store.Create(suite.ctx, "Nope", domain.Record{"name": "x"})
	suite.ErrorIs(err, apperrors.ErrUnknownCollection)

	// Collections introduced by the loaded workbook are writable.
	created, err := suite.store.Create(suite.ctx, "Custom", domain.Record{"value": "y"})
	suite.Require().NoError(err)
	suite.Len(suite.store.List(suite.ctx, "Custom"), 2)
	suite.NotEmpty(created.ID())

	// Known collections are writable even when the workbook had no such sheet.
	_, err = suite.store.Create(suite.ctx, domain.Programs, domain.Record{"name": "Outreach"})
	suite.NoError(err)
}

func (suite *CollectionStoreTestSuite) TestReplace_AttachesSortedLines() {
	header, ok := suite.store.Get(suite.ctx, domain.JournalEntries, "JE001")
	suite.Require().True(ok)
	lines, ok := domain.RecordsOf(header[domain.FieldLines])
	suite.Require().True(ok)
	suite.Require().Len(lines, 2)
	suite.Equal("JE001-L1", lines[0].ID())
	suite.Equal("JE001-L2", lines[1].ID())
}

func (suite *CollectionStoreTestSuite) TestCreateJournal_SplitsLines() {
	created, err := suite.store.Create(suite.ctx, domain.JournalEntries, domain.Record{
		"id":          "JE100",
		"description": "Transfer",
		"lines": []domain.Record{
			{"type": "Debit", "amount": 120.5, "paymentCenter": "1"},
			{"type": "credit", "amount": 120.5, "paymentCenter": "2"},
		},
	})
	suite.Require().NoError(err)
	suite.Equal(120.5, created[domain.FieldTotalAmount])

	stored := suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE100")
	suite.Require().Len(stored, 2)
	suite.Equal("JE100-L1", stored[0].ID())
	suite.Equal("debit", stored[0]["type"])
	suite.Equal(1, stored[0][domain.FieldLineNumber])
	suite.Equal("JE100-L2", stored[1].ID())

	header, _ := suite.store.Get(suite.ctx, domain.JournalEntries, "JE100")
	view, ok := domain.RecordsOf(header[domain.FieldLines])
	suite.Require().True(ok)
	suite.Len(view, 2)

	suite.Len(suite.auditLog(), 1, "one entry per mutation even when lines are written")
}

func (suite *CollectionStoreTestSuite) TestUpdateJournal_ReplacesLines() {
	ok, err := suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{
		"lines": []domain.Record{
			{"type": "debit", "amount": 10.0},
			{"type": "debit", "amount": 5.0},
			{"type": "credit", "amount": 15.0},
		},
	})
	suite.Require().NoError(err)
	suite.True(ok)

	lines := suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE001")
	suite.Require().Len(lines, 3)
	for _, line := range lines {
		suite.NotEqual(5000.0, line["amount"])
	}

	header, _ := suite.store.Get(suite.ctx, domain.JournalEntries, "JE001")
	suite.Equal(15.0, header[domain.FieldTotalAmount])
	view, _ := domain.RecordsOf(header[domain.FieldLines])
	suite.Len(view, 3)
}

func (suite *CollectionStoreTestSuite) TestDeleteJournal_CascadesToLines() {
	ok, err := suite.store.Delete(suite.ctx, domain.JournalEntries, "JE001")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Empty(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE001"))
	suite.Len(suite.auditLog(), 1)
}

func (suite *CollectionStoreTestSuite) TestDeleteLine_RelinksHeader() {
	ok, err := suite.store.Delete(suite.ctx, domain.JournalLines, "JE001-L2")
	suite.Require().NoError(err)
	suite.True(ok)

	header, _ := suite.store.Get(suite.ctx, domain.JournalEntries, "JE001")
	view, _ := domain.RecordsOf(header[domain.FieldLines])
	suite.Require().Len(view, 1)
	suite.Equal("JE001-L1", view[0].ID())
}

func (suite *CollectionStoreTestSuite) TestCreateJournal_LineIDHeldByAnotherJournal() {
	_, err := suite.store.Create(suite.ctx, domain.JournalLines, domain.Record{
		"id": "JE9-L1", "journalId": "OTHER", "lineNumber": 1, "type": "debit", "amount": 10.0,
	})
	suite.Require().NoError(err)

	_, err = suite.store.Create(suite.ctx, domain.JournalEntries, domain.Record{
		"id": "JE9",
		"lines": []domain.Record{
			{"type": "debit", "amount": 10.0},
			{"type": "credit", "amount": 10.0},
		},
	})
	suite.ErrorIs(err, apperrors.ErrDuplicate)

	held := suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldID, "JE9-L1")
	suite.Require().Len(held, 1)
	suite.Equal("OTHER", held[0][domain.FieldJournalID])
	suite.Empty(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldID, "JE9-L2"))
	_, found := suite.store.Get(suite.ctx, domain.JournalEntries, "JE9")
	suite.False(found)
	suite.Len(suite.auditLog(), 1)
}

func (suite *CollectionStoreTestSuite) TestUpdateJournal_LineIDHeldByAnotherJournal() {
	_, err := suite.store.Create(suite.ctx, domain.JournalLines, domain.Record{
		"id": "JE001-L3", "journalId": "OTHER", "lineNumber": 1, "type": "credit", "amount": 1.0,
	})
	suite.Require().NoError(err)
	version := suite.store.Version()

	ok, err := suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{
		"lines": []domain.Record{
			{"type": "debit", "amount": 10.0},
			{"type": "debit", "amount": 5.0},
			{"type": "credit", "amount": 15.0},
		},
	})
	suite.ErrorIs(err, apperrors.ErrDuplicate)
	suite.False(ok)

	suite.Len(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldID, "JE001-L3"), 1)
	suite.Len(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE001"), 2)
	header, _ := suite.store.Get(suite.ctx, domain.JournalEntries, "JE001")
	suite.Equal(5000.0, header[domain.FieldTotalAmount])
	suite.Equal(version, suite.store.Version())
	suite.Len(suite.auditLog(), 1)
}

func (suite *CollectionStoreTestSuite) TestJournal_MalformedLinesRejected() {
	_, err := suite.store.Create(suite.ctx, domain.JournalEntries, domain.Record{"id": "JE7", "lines": "debit 10"})
	suite.ErrorIs(err, apperrors.ErrValidation)
	_, found := suite.store.Get(suite.ctx, domain.JournalEntries, "JE7")
	suite.False(found)

	ok, err := suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{"lines": []any{"debit", 10.0}})
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.False(ok)
	header, _ := suite.store.Get(suite.ctx, domain.JournalEntries, "JE001")
	suite.Equal(5000.0, header[domain.FieldTotalAmount])
	suite.Len(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE001"), 2)
	suite.Empty(suite.auditLog())
}

func (suite *CollectionStoreTestSuite) TestCreateJournal_NullLinesMeansNoLines() {
	created, err := suite.store.Create(suite.ctx, domain.JournalEntries, domain.Record{"id": "JE8", "lines": nil})
	suite.Require().NoError(err)
	suite.Equal(0.0, created[domain.FieldTotalAmount])
	suite.Empty(suite.store.Filter(suite.ctx, domain.JournalLines, domain.FieldJournalID, "JE8"))
}

func (suite *CollectionStoreTestSuite) TestUpdate_StatusTransitionsUseApprovalActions() {
	_, err := suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{"status": "Approved", "approvedBy": "2"})
	suite.Require().NoError(err)
	_, err = suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{"status": "Rejected"})
	suite.Require().NoError(err)
	_, err = suite.store.Update(suite.ctx, domain.JournalEntries, "JE001", domain.Record{"status": "Rejected", "reason": "typo"})
	suite.Require().NoError(err)

	entries := suite.auditLog()
	suite.Require().Len(entries, 3)
	suite.Equal(string(domain.ActionApprove), entries[0]["action"])
	suite.Equal(string(domain.ActionReject), entries[1]["action"])
	suite.Equal(string(domain.ActionUpdate), entries[2]["action"], "unchanged status is a plain update")
}

func (suite *CollectionStoreTestSuite) TestBudgets_UniquePerCenterAndYear() {
	_, err := suite.store.Create(suite.ctx, domain.PaymentCenterBudgets, domain.Record{"paymentCenterId": "1", "year": 2024, "budget": 1.0})
	suite.ErrorIs(err, apperrors.ErrDuplicate)

	created, err := suite.store.Create(suite.ctx, domain.PaymentCenterBudgets, domain.Record{"paymentCenterId": "1", "year": 2025, "budget": 1.0})
	suite.Require().NoError(err)

	_, err = suite.store.Update(suite.ctx, domain.PaymentCenterBudgets, created.ID(), domain.Record{"year": 2024})
	suite.ErrorIs(err, apperrors.ErrDuplicate)

	budget, ok := suite.store.FindBudget(suite.ctx, "1", 2024)
	suite.Require().True(ok)
	suite.Equal("PCB001", budget.ID())
	_, ok = suite.store.FindBudget(suite.ctx, "1", 2030)
	suite.False(ok)

	suite.Len(suite.auditLog(), 1)
}

func (suite *CollectionStoreTestSuite) TestFilter() {
	suite.Len(suite.store.Filter(suite.ctx, domain.Users, domain.FieldPermissions, "write"), 1)
	suite.Empty(suite.store.Filter(suite.ctx, domain.Users, domain.FieldPermissions, "admin"))
	suite.Len(suite.store.Filter(suite.ctx, domain.Users, domain.FieldID, 1), 1)
	suite.Len(suite.store.Filter(suite.ctx, domain.PaymentCenterBudgets, "year", 2024), 1)
	suite.Len(suite.store.Filter(suite.ctx, domain.Suppliers, "category", "1"), 1)
}

func (suite *CollectionStoreTestSuite) TestUsers_PermissionsParsedOnWrite() {
	created, err := suite.store.Create(suite.ctx, domain.Users, domain.Record{"username": "viewer", "permissions": " read , export "})
	suite.Require().NoError(err)
	suite.Equal([]string{"read", "export"}, created[domain.FieldPermissions])

	_, err = suite.store.Update(suite.ctx, domain.Users, created.ID(), domain.Record{"permissions": "read"})
	suite.Require().NoError(err)
	got, _ := suite.store.Get(suite.ctx, domain.Users, created.ID())
	suite.Equal([]string{"read"}, got[domain.FieldPermissions])
}

func (suite *CollectionStoreTestSuite) TestSnapshot_IsFlatDeepCopy() {
	snapshot, version := suite.store.Snapshot(suite.ctx)
	suite.Equal(suite.store.Version(), version)

	header := snapshot[domain.JournalEntries][0]
	_, hasLines := header[domain.FieldLines]
	suite.False(hasLines)
	suite.Equal("read,write", snapshot[domain.Users][0][domain.FieldPermissions])
	suite.Len(snapshot[domain.JournalLines], 2)

	snapshot[domain.Suppliers][0]["name"] = "Changed in snapshot"
	got, _ := suite.store.Get(suite.ctx, domain.Suppliers, "SUP001")
	suite.Equal("Tech Solutions Inc", got["name"])
}

func (suite *CollectionStoreTestSuite) TestAuditEntry_CarriesActor() {
	ctx := middleware.WithActor(suite.ctx, domain.Actor{UserID: "3", Username: "jane"})
	_, err := suite.store.Create(ctx, domain.Programs, domain.Record{"name": "Outreach"})
	suite.Require().NoError(err)

	entries := suite.auditLog()
	suite.Require().Len(entries, 1)
	suite.Equal("3", entries[0]["userId"])
	suite.Equal("jane", entries[0]["username"])

	_, err = suite.store.Create(suite.ctx, domain.Programs, domain.Record{"name": "General"})
	suite.Require().NoError(err)
	suite.Equal(domain.SystemActor.UserID, suite.auditLog()[1]["userId"])
}

func (suite *CollectionStoreTestSuite) TestCollections_ListsDeclaredInSheetOrder() {
	infos := suite.store.Collections(suite.ctx)
	names := make([]string, 0, len(infos))
	counts := map[string]int{}
	for _, info := range infos {
		names = append(names, info.Name)
		counts[info.Name] = info.Records
	}
	suite.Equal(append(domain.KnownCollections(), "Custom"), names)
	suite.Equal(2, counts[domain.JournalLines])
	suite.Equal(0, counts[domain.Expenses])
}

func (suite *CollectionStoreTestSuite) TestListener_SeesOutcomes() {
	_, _ = suite.store.Create(suite.ctx, domain.Programs, domain.Record{"name": "Outreach"})
	_, _ = suite.store.Create(suite.ctx, domain.PaymentCenterBudgets, domain.Record{"paymentCenterId": "1", "year": 2024})

	suite.Require().Len(suite.listener.calls, 2)
	suite.Equal(mutationCall{collection: domain.Programs, action: domain.ActionCreate}, suite.listener.calls[0])
	suite.ErrorIs(suite.listener.calls[1].err, apperrors.ErrDuplicate)
}

func TestCollectionStoreTestSuite(t *testing.T) {
	suite.Run(t, new(CollectionStoreTestSuite))
}

func TestCollectionStore_AuditFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	audit := new(MockAuditLogger)
	audit.On("Entry", mock.Anything, mock.Anything).Return(nil, errors.New("clock unavailable"))

	store := services.NewCollectionStore(audit)
	version := store.Replace(ctx, services.NewReconciler().Reconcile(ctx, storeFixture()))

	_, err := store.Create(ctx, domain.Suppliers, domain.Record{"name": "New"})
	assert.Error(t, err)
	ok, err := store.Update(ctx, domain.JournalEntries, "JE001", domain.Record{"lines": []domain.Record{}})
	assert.Error(t, err)
	assert.False(t, ok)
	ok, err = store.Delete(ctx, domain.JournalEntries, "JE001")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.Len(t, store.List(ctx, domain.Suppliers), 1)
	assert.Len(t, store.List(ctx, domain.JournalLines), 2)
	header, found := store.Get(ctx, domain.JournalEntries, "JE001")
	require.True(t, found)
	assert.Equal(t, 5000.0, header[domain.FieldTotalAmount])
	assert.Empty(t, store.List(ctx, domain.AuditLog))
	assert.Equal(t, version, store.Version())
	audit.AssertNumberOfCalls(t, "Entry", 3)
}
