package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/config"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/erpsync"
	"github.com/smallbiznis/delinquency/internal/observability"
	snapshotdomain "github.com/smallbiznis/delinquency/internal/snapshot/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDelinquencyService struct {
	err        error
	detailsReq domain.DetailsRequest
	reportReq  domain.ReportRequest
}

func (f *fakeDelinquencyService) Delinquency(_ context.Context, req domain.DelinquencyRequest) (domain.DelinquencyResponse, error) {
	if f.err != nil {
		return domain.DelinquencyResponse{}, f.err
	}
	resp := domain.DelinquencyResponse{View: req.View, ReportDays: 45, HasData: true}
	if req.View == domain.ViewTotal {
		resp.Totals = &domain.TotalsRow{Total: 4, Current: 1, Chronic: 3}
		return resp, nil
	}
	resp.ByDate = []domain.DailyBucket{{DueDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Total: 2, StandardOverdue: 2}}
	return resp, nil
}

func (f *fakeDelinquencyService) Details(_ context.Context, req domain.DetailsRequest) ([]domain.DetailRow, error) {
	f.detailsReq = req
	return []domain.DetailRow{{BillID: "1", CustomerName: "ACME", Amount: decimal.NewFromInt(10), Category: domain.CategoryChronic}}, f.err
}

func (f *fakeDelinquencyService) Report(_ context.Context, req domain.ReportRequest) (domain.Report, error) {
	f.reportReq = req
	if f.err != nil {
		return domain.Report{}, f.err
	}
	ref := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	return domain.Report{
		ReferenceDate: ref,
		Period:        domain.Period{Start: ref.AddDate(0, 0, -45), End: ref},
		HasData:       true,
		Warnings:      []domain.Warning{},
	}, nil
}

type fakeTrigger struct {
	raw string
	err error
}

func (f *fakeTrigger) Trigger(_ context.Context, raw string) (erpsync.Services, error) {
	f.raw = raw
	if f.err != nil {
		return erpsync.Services{}, f.err
	}
	return erpsync.ParseServices(raw)
}

type fakeRuns struct {
	limit int
}

func (f *fakeRuns) ListSyncRuns(_ context.Context, limit int) ([]snapshotdomain.SyncRun, error) {
	f.limit = limit
	return []snapshotdomain.SyncRun{{ID: 1, Kind: snapshotdomain.SyncKindCustomers, Status: snapshotdomain.SyncStatusSucceeded}}, nil
}

type testServer struct {
	engine  *gin.Engine
	svc     *fakeDelinquencyService
	trigger *fakeTrigger
	runs    *fakeRuns
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := testServer{
		engine:  NewEngine(observability.Config{}, nil),
		svc:     &fakeDelinquencyService{},
		trigger: &fakeTrigger{},
		runs:    &fakeRuns{},
	}
	NewServer(ServerParams{
		Gin:            ts.engine,
		Cfg:            config.Config{ReportDays: 45},
		Log:            zaptest.NewLogger(t),
		DelinquencySvc: ts.svc,
		SyncTrigger:    ts.trigger,
		SyncRuns:       ts.runs,
	})
	return ts
}

func (ts testServer) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGetDelinquencyByDateReturnsArray(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/inadiplencia")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []domain.DailyBucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].StandardOverdue)
	assert.Equal(t, "true", rec.Header().Get("X-Has-Data"))
}

func TestGetDelinquencyTotals(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/inadiplencia?view=total")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.DelinquencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Totals)
	assert.Equal(t, 3, resp.Totals.Chronic)
}

func TestGetDelinquencyInvalidView(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/inadiplencia?view=weekly")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_view", payload.Errors[0].Code)
	assert.Equal(t, "view", payload.Errors[0].Field)
}

func TestGetDelinquencyServiceError(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.err = errors.New("database is locked")

	rec := ts.do(http.MethodGet, "/financial/inadiplencia")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Type)
}

func TestGetDetails(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/detalhes?date=15-03-2024")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ts.svc.detailsReq.Date)
	assert.Contains(t, rec.Body.String(), `"risk_category":"chronic"`)

	rec = ts.do(http.MethodGet, "/financial/detalhes?date=2024-03-15")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(http.MethodGet, "/financial/detalhes")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decodeError(t, rec).Errors[0].Code)
}

func TestGetReport(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/report?start=2024-03-01&end=10-03-2024")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.svc.reportReq.Start)
	require.NotNil(t, ts.svc.reportReq.End)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *ts.svc.reportReq.End)

	rec = ts.do(http.MethodGet, "/financial/report?start=2024-03-10&end=2024-03-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decodeError(t, rec).Errors[0].Code)
}

func TestExportReport(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/financial/report/export?format=md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, `attachment; filename="delinquency_20240204_20240320.md"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "# Delinquency Report")

	rec = ts.do(http.MethodGet, "/financial/report/export?format=docx")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_format", decodeError(t, rec).Errors[0].Code)
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/sync?services=customers")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "customers", ts.trigger.raw)

	var body triggerSyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]bool{"customers": true, "contracts": false, "bills": false}, body.Services)

	rec = ts.do(http.MethodPost, "/sync")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "all", ts.trigger.raw)

	rec = ts.do(http.MethodPost, "/sync?services=payments")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_services", decodeError(t, rec).Errors[0].Code)

	ts.trigger.err = erpsync.ErrSyncInProgress
	rec = ts.do(http.MethodPost, "/sync")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListSyncRuns(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/sync/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.runs.limit)
	assert.Contains(t, rec.Body.String(), `"kind":"customers"`)

	rec = ts.do(http.MethodGet, "/sync/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
