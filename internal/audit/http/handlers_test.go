package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

type stubQueryService struct {
	records     []audit.Record
	rows        []audit.SummaryRow
	err         error
	lastFilters audit.Filters
	lastSummary audit.SummaryFilters
}

func (s *stubQueryService) List(ctx context.Context, filters audit.Filters) ([]audit.Record, error) {
	s.lastFilters = filters
	return s.records, s.err
}

func (s *stubQueryService) Summary(ctx context.Context, filters audit.SummaryFilters) (audit.Summary, error) {
	s.lastSummary = filters
	return audit.Summary{From: filters.From, To: filters.To, Window: filters.Window, Rows: s.rows}, s.err
}

// summaryReader records the bounds the audit service hands to storage.
type summaryReader struct {
	lastSummary audit.SummaryFilters
}

func (r *summaryReader) List(ctx context.Context, filters audit.Filters) ([]audit.Record, error) {
	return nil, nil
}

func (r *summaryReader) Summary(ctx context.Context, filters audit.SummaryFilters) ([]audit.SummaryRow, error) {
	r.lastSummary = filters
	return nil, nil
}

func newAuditRouter(service QueryService, guard Guard, actor *shared.Actor) http.Handler {
	r := chi.NewRouter()
	if actor != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), *actor)))
			})
		})
	}
	r.Route("/api/audit", NewHandler(nil, service, guard).MountRoutes)
	return r
}

func TestListPassesFilters(t *testing.T) {
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	service := &stubQueryService{records: []audit.Record{{ID: 1, ActorID: 7, Action: "login", Module: "auth", At: at}}}
	router := newAuditRouter(service, nil, &shared.Actor{ID: 1, Role: shared.RoleAdmin})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit?actor=7&module=auth&action=login&from=2026-03-01&to=2026-03-15T00:00:00Z&limit=10", nil))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	assert.Equal(t, int64(7), service.lastFilters.ActorID)
	assert.Equal(t, "auth", service.lastFilters.Module)
	assert.Equal(t, "login", service.lastFilters.Action)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), service.lastFilters.To)
	assert.Equal(t, 10, service.lastFilters.Limit)

	var body listResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "login", body.Entries[0].Action)
	assert.Equal(t, 10, body.Limit)
}

func TestListRejectsBadFilters(t *testing.T) {
	router := newAuditRouter(&stubQueryService{}, nil, &shared.Actor{ID: 1})
	for _, query := range []string{"actor=abc", "from=yesterday", "limit=-1"} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, res.Code, query)
	}
}

func TestSummaryWindow(t *testing.T) {
	service := &stubQueryService{rows: []audit.SummaryRow{{Module: "tickets", Action: "create", Count: 3}}}
	router := newAuditRouter(service, nil, &shared.Actor{ID: 1})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit/summary?window=week", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, audit.WindowWeek, service.lastSummary.Window)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit/summary?window=month", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDateOnlyToCoversWholeDay(t *testing.T) {
	service := &stubQueryService{}
	router := newAuditRouter(service, nil, &shared.Actor{ID: 1})
	endOfDay := time.Date(2026, 3, 15, 23, 59, 59, 999999000, time.UTC)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit?from=2026-03-15&to=2026-03-15", nil))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
	assert.Equal(t, endOfDay, service.lastFilters.To)
	assert.True(t, service.lastFilters.To.After(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit/summary?to=2026-03-15", nil))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, endOfDay, service.lastSummary.To)
}

func TestSummaryEchoesAppliedBounds(t *testing.T) {
	reader := &summaryReader{}
	router := newAuditRouter(audit.NewService(reader), nil, &shared.Actor{ID: 1})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit/summary", nil))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body audit.Summary
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.False(t, body.From.IsZero())
	assert.False(t, body.To.IsZero())
	assert.True(t, body.From.Equal(reader.lastSummary.From))
	assert.True(t, body.To.Equal(reader.lastSummary.To))
	assert.Equal(t, 30*24*time.Hour, body.To.Sub(body.From))
	assert.Equal(t, audit.WindowDay, body.Window)
	assert.NotNil(t, body.Rows)
}

func TestGuardRunsFirst(t *testing.T) {
	deny := Guard(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, shared.ErrPermissionDenied)
		})
	})
	service := &stubQueryService{}
	router := newAuditRouter(service, deny, &shared.Actor{ID: 3})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Zero(t, service.lastFilters.Limit)
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	router := newAuditRouter(&stubQueryService{err: errors.New("relation audit_logs does not exist")}, nil, &shared.Actor{ID: 1})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), "audit_logs")
}

func TestRateLimitedPerActor(t *testing.T) {
	router := newAuditRouter(&stubQueryService{}, nil, &shared.Actor{ID: 11})
	var last int
	for i := 0; i <= rateLimit; i++ {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
		last = res.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
