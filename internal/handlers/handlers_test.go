package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/memory"
	"github.com/SscSPs/kiosc_finance_app/internal/adapters/workbook/xlsx"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/SscSPs/kiosc_finance_app/internal/handlers"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/config"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/metrics"
	"github.com/SscSPs/kiosc_finance_app/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const (
	testSecret   = "handlers-test-secret"
	workbookName = "KIOSC_Finance_Data.xlsx"
)

type HandlerTestSuite struct {
	suite.Suite
	router *gin.Engine
	svc    *portssvc.ServiceContainer
	remote *memory.Store
	token  string
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWTSecret:        testSecret,
		WorkbookFilename: workbookName,
		IsProduction:     false,
	}
	suite.remote = memory.New()
	suite.svc = services.NewServiceContainer(cfg, suite.remote, xlsx.NewCodec(), services.Observers{})
	_, err := suite.svc.Sync.Load(context.Background())
	suite.Require().NoError(err)

	suite.router = gin.New()
	suite.Require().NoError(handlers.RegisterRoutes(suite.router, cfg, suite.svc, handlers.Observability{
		Metrics: metrics.New().Handler(),
	}))

	suite.token, err = utils.GenerateJWT("2", "manager", testSecret, time.Hour, "test")
	suite.Require().NoError(err)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (suite *HandlerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+suite.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) decode(w *httptest.ResponseRecorder, out any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (suite *HandlerTestSuite) createPendingJournal(reference string) string {
	w := suite.do(http.MethodPost, "/api/v1/collections/JournalEntries", map[string]any{
		"date":        "2024-05-01",
		"description": "Reallocation",
		"reference":   reference,
		"lines": []map[string]any{
			{"type": "debit", "program": "2", "paymentCenter": "1", "amount": 100},
			{"type": "credit", "program": "1", "paymentCenter": "1", "amount": 100},
		},
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	suite.decode(w, &created)
	return created["id"].(string)
}

func (suite *HandlerTestSuite) TestPublicRoutes() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"session":"Ready"`)

	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "/collections/{collection}")
}

func (suite *HandlerTestSuite) TestAPIRequiresToken() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil))
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestListCollections() {
	w := suite.do(http.MethodGet, "/api/v1/collections", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Collections []portssvc.CollectionInfo `json:"collections"`
	}
	suite.decode(w, &resp)
	counts := map[string]int{}
	for _, info := range resp.Collections {
		counts[info.Name] = info.Records
	}
	suite.Equal(4, counts[domain.Users])
	suite.Equal(3, counts[domain.Suppliers])
	suite.Equal(4, counts[domain.JournalLines])
}

func (suite *HandlerTestSuite) TestListRecordsPaginates() {
	w := suite.do(http.MethodGet, "/api/v1/collections/Users?limit=3", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var page struct {
		Records   []map[string]any `json:"records"`
		Total     int              `json:"total"`
		NextToken *string          `json:"nextToken"`
	}
	suite.decode(w, &page)
	suite.Len(page.Records, 3)
	suite.Equal(4, page.Total)
	suite.Require().NotNil(page.NextToken)

	w = suite.do(http.MethodGet, "/api/v1/collections/Users?limit=3&nextToken="+*page.NextToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	page.NextToken = nil
	suite.decode(w, &page)
	suite.Len(page.Records, 1)
	suite.Equal("4", page.Records[0]["id"])
	suite.Nil(page.NextToken)

	w = suite.do(http.MethodGet, "/api/v1/collections/Suppliers?nextToken=garbage", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestListRecordsFilters() {
	w := suite.do(http.MethodGet, "/api/v1/collections/Expenses?field=supplier&value=SUP001", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Records []map[string]any `json:"records"`
	}
	suite.decode(w, &page)
	suite.Require().Len(page.Records, 1)
	suite.Equal("EXP001", page.Records[0]["id"])

	w = suite.do(http.MethodGet, "/api/v1/collections/Expenses?value=SUP001", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/collections/Nope", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"records":[]`)
}

func (suite *HandlerTestSuite) TestGetRecord() {
	w := suite.do(http.MethodGet, "/api/v1/collections/JournalEntries/JE001", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var entry map[string]any
	suite.decode(w, &entry)
	suite.Equal("JE001", entry["id"])
	suite.Len(entry["lines"], 2)

	w = suite.do(http.MethodGet, "/api/v1/collections/Suppliers/SUP999", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestCreateRecord() {
	w := suite.do(http.MethodPost, "/api/v1/collections/Suppliers", map[string]any{
		"name": "Acme Pty Ltd", "code": "SUP010", "category": "1", "email": "accounts@acme.com",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	suite.decode(w, &created)
	id, _ := created["id"].(string)
	suite.NotEmpty(id)
	suite.NotEmpty(created["createdAt"])

	audit := suite.svc.Store.Filter(context.Background(), domain.AuditLog, "entityId", id)
	suite.Require().Len(audit, 1)
	suite.Equal("2", audit[0]["userId"])
	suite.Equal("manager", audit[0]["username"])
	suite.True(suite.svc.Sync.HasUnsavedChanges())
}

func (suite *HandlerTestSuite) TestCreateRecordRejected() {
	testCases := []struct {
		name       string
		collection string
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{"validation", "Suppliers", map[string]any{"code": "SUP011", "category": "1"}, http.StatusBadRequest, "name is required"},
		{"read-only audit log", "AuditLog", map[string]any{"entityType": "Users"}, http.StatusForbidden, "read-only"},
		{"unknown collection", "Nope", map[string]any{"name": "x"}, http.StatusNotFound, "unknown collection"},
		{"duplicate budget", "PaymentCenterBudgets", map[string]any{
			"paymentCenterId": "1", "year": time.Now().Year(), "budget": 10,
		}, http.StatusConflict, "already exists"},
	}
	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			w := suite.do(http.MethodPost, "/api/v1/collections/"+tc.collection, tc.body)
			suite.Equal(tc.wantStatus, w.Code, w.Body.String())
			suite.Contains(w.Body.String(), tc.wantError)
		})
	}
}

func (suite *HandlerTestSuite) TestUpdateRecord() {
	w := suite.do(http.MethodPut, "/api/v1/collections/Suppliers/SUP001", map[string]any{"name": "Renamed", "id": "ignored"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated map[string]any
	suite.decode(w, &updated)
	suite.Equal("SUP001", updated["id"])
	suite.Equal("Renamed", updated["name"])

	w = suite.do(http.MethodPut, "/api/v1/collections/Suppliers/SUP001", map[string]any{"email": "nope"})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPut, "/api/v1/collections/Suppliers/SUP999", map[string]any{"name": "x"})
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestDeleteJournalCascades() {
	w := suite.do(http.MethodDelete, "/api/v1/collections/JournalEntries/JE002", nil)
	suite.Require().Equal(http.StatusNoContent, w.Code)

	lines := suite.svc.Store.Filter(context.Background(), domain.JournalLines, domain.FieldJournalID, "JE002")
	suite.Empty(lines)

	w = suite.do(http.MethodDelete, "/api/v1/collections/JournalEntries/JE002", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestApproveJournal() {
	id := suite.createPendingJournal("JE-TEST-1")

	w := suite.do(http.MethodPost, "/api/v1/journals/"+id+"/approve", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var entry map[string]any
	suite.decode(w, &entry)
	suite.Equal("Approved", entry["status"])
	suite.Equal("manager", entry["approvedBy"])
	suite.NotEmpty(entry["approvedAt"])
	suite.EqualValues(100, entry["totalAmount"])

	w = suite.do(http.MethodPost, "/api/v1/journals/"+id+"/approve", nil)
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do(http.MethodGet, fmt.Sprintf("/api/v1/audit?entityType=JournalEntries&entityId=%s", id), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var audit struct {
		Entries []struct {
			Action string `json:"action"`
		} `json:"entries"`
	}
	suite.decode(w, &audit)
	actions := make([]string, 0, len(audit.Entries))
	for _, e := range audit.Entries {
		actions = append(actions, e.Action)
	}
	suite.ElementsMatch([]string{"CREATE", "APPROVE"}, actions)
}

func (suite *HandlerTestSuite) TestApproveUnbalancedJournal() {
	_, err := suite.svc.Store.Create(context.Background(), domain.JournalEntries, domain.Record{
		"id": "JE900", "status": "Pending",
		"lines": []any{
			map[string]any{"type": "debit", "amount": 100.0},
			map[string]any{"type": "credit", "amount": 50.0},
		},
	})
	suite.Require().NoError(err)

	w := suite.do(http.MethodPost, "/api/v1/journals/JE900/approve", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "unbalanced")

	w = suite.do(http.MethodPost, "/api/v1/journals/JE404/approve", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestRejectJournal() {
	id := suite.createPendingJournal("JE-TEST-2")

	w := suite.do(http.MethodPost, "/api/v1/journals/"+id+"/reject", map[string]any{})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/journals/"+id+"/reject", map[string]any{"reason": "Wrong program"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var entry map[string]any
	suite.decode(w, &entry)
	suite.Equal("Rejected", entry["status"])
	suite.Equal("manager", entry["rejectedBy"])
	suite.Equal("Wrong program", entry["reason"])

	w = suite.do(http.MethodPost, "/api/v1/journals/JE001/reject", map[string]any{"reason": "late"})
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlerTestSuite) TestBudgetLookup() {
	year := time.Now().Year()
	w := suite.do(http.MethodGet, fmt.Sprintf("/api/v1/budgets/lookup?paymentCenterId=1&year=%d", year), nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var budget map[string]any
	suite.decode(w, &budget)
	suite.Equal("PCB001", budget["id"])

	w = suite.do(http.MethodGet, "/api/v1/budgets/lookup?paymentCenterId=1&year=1999", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/budgets/lookup?year=2024", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestSyncLifecycle() {
	var status portssvc.SessionStatus
	w := suite.do(http.MethodGet, "/api/v1/sync/status", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(w, &status)
	suite.Equal(portssvc.StateReady, status.State)
	suite.Equal(portssvc.SourceDefaults, status.Source)
	suite.Equal("memory", status.Driver)
	suite.False(status.HasUnsavedChanges)

	w = suite.do(http.MethodPut, "/api/v1/collections/Programs/1", map[string]any{"budget": 260000})
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/sync/load", nil)
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/sync/save", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var saved portssvc.SaveResult
	suite.decode(w, &saved)
	suite.Equal(workbookName, saved.Filename)
	suite.NotEmpty(saved.Revision)
	suite.False(suite.svc.Sync.HasUnsavedChanges())

	w = suite.do(http.MethodPost, "/api/v1/sync/load", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var loaded portssvc.LoadResult
	suite.decode(w, &loaded)
	suite.Equal(portssvc.SourceRemote, loaded.Source)

	program, ok := suite.svc.Store.Get(context.Background(), domain.Programs, "1")
	suite.Require().True(ok)
	suite.EqualValues(260000, program["budget"])

	w = suite.do(http.MethodGet, "/api/v1/sync/files", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), workbookName)

	w = suite.do(http.MethodGet, "/api/v1/sync/ping", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"status":"ok"`)
}

func (suite *HandlerTestSuite) TestSyncLoadForce() {
	w := suite.do(http.MethodDelete, "/api/v1/collections/Suppliers/SUP003", nil)
	suite.Require().Equal(http.StatusNoContent, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/sync/load?force=maybe", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/sync/load?force=true", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	_, ok := suite.svc.Store.Get(context.Background(), domain.Suppliers, "SUP003")
	suite.True(ok)
}

func (suite *HandlerTestSuite) TestExport() {
	w := suite.do(http.MethodGet, "/api/v1/sync/export", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	suite.Contains(w.Header().Get("Content-Disposition"), workbookName)

	ds, err := xlsx.NewCodec().Decode(w.Body.Bytes())
	suite.Require().NoError(err)
	suite.Len(ds[domain.Suppliers], 3)
	suite.Len(ds[domain.JournalLines], 4)

	files, err := suite.remote.ListFiles(context.Background())
	suite.Require().NoError(err)
	suite.Empty(files)
}
