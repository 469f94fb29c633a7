package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

type auditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditSpy) Record(ctx context.Context, entry audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func withActor(actor shared.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

func newPermissionsRouter(actor shared.Actor, repo *memoryRepo, spy *auditSpy) http.Handler {
	svc := NewService(repo)
	h := NewPermissionsHandler(nil, svc, spy, Middleware{Service: svc})
	r := chi.NewRouter()
	r.Use(withActor(actor))
	r.Route("/api/permissions", h.MountRoutes)
	return r
}

func TestPermissionsHandlerSaveAndGet(t *testing.T) {
	repo := newMemoryRepo()
	repo.roles[1] = shared.RoleAdmin
	repo.roles[7] = shared.RoleTechnician
	spy := &auditSpy{}
	router := newPermissionsRouter(shared.Actor{ID: 1, Role: shared.RoleAdmin}, repo, spy)

	body, _ := json.Marshal(map[string]any{"permissions": map[string]any{"tickets": map[string]bool{"view": true, "edit": true}}})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/api/permissions/7", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Len(t, spy.entries, 1)
	assert.Equal(t, "update_permissions", spy.entries[0].Action)
	assert.Equal(t, "7", spy.entries[0].TargetID)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/permissions/7", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var got permissionsResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, PermissionSet{ModuleTickets: {View: true, Edit: true}}, got.Permissions)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/permissions/7/check?module=tickets&action=edit", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var check checkResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &check))
	assert.True(t, check.Allowed)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/permissions/7/check?module=tickets&action=destroy", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPermissionsHandlerDeniesWithoutCapability(t *testing.T) {
	repo := newMemoryRepo()
	repo.roles[3] = shared.RoleUser
	repo.rows[3] = PermissionSet{ModuleUsers: {View: true}}
	router := newPermissionsRouter(shared.Actor{ID: 3, Role: shared.RoleUser}, repo, &auditSpy{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/permissions/3", nil))
	assert.Equal(t, http.StatusOK, res.Code)

	body, _ := json.Marshal(map[string]any{"permissions": map[string]any{"users": map[string]bool{"edit": true}}})
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/api/permissions/3", bytes.NewReader(body)))
	require.Equal(t, http.StatusForbidden, res.Code)
	var errBody httpx.ErrorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &errBody))
	assert.Equal(t, httpx.CodePermissionDenied, errBody.Code)
}

func TestRequireWithoutActor(t *testing.T) {
	svc := NewService(newMemoryRepo())
	handler := Middleware{Service: svc}.Require(ModuleTickets, CapabilityView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
