package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/auth"
	"github.com/assetdesk/assetdesk/internal/shared"
	_ "github.com/assetdesk/assetdesk/testing"
)

type stubRepo struct {
	mu     sync.Mutex
	users  map[int64]*auth.Principal
	nextID int64
}

func newStubRepo(users ...*auth.Principal) *stubRepo {
	repo := &stubRepo{users: map[int64]*auth.Principal{}, nextID: 100}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *stubRepo) Create(ctx context.Context, p auth.NewPrincipal) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == p.Email {
			return nil, auth.ErrEmailTaken
		}
	}
	s.nextID++
	created := &auth.Principal{ID: s.nextID, Name: p.Name, Email: p.Email, PasswordHash: p.PasswordHash, Role: p.Role, IsActive: true}
	s.users[created.ID] = created
	copied := *created
	return &copied, nil
}

func (s *stubRepo) deactivate(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].IsActive = false
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(ctx context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

type fixture struct {
	router http.Handler
	repo   *stubRepo
	audit  *recordingAudit
	issuer *auth.Issuer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newStubRepo(
		&auth.Principal{ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: hashed(t, "correct-pass"), Role: shared.RoleTechnician, IsActive: true},
		&auth.Principal{ID: 2, Name: "Bob", Email: "bob@example.com", PasswordHash: hashed(t, "correct-pass"), Role: shared.RoleUser, IsActive: false},
	)
	recorder := &recordingAudit{}
	issuer := auth.NewIssuer("test-secret", time.Hour)
	svc := auth.NewService(repo, issuer, recorder, nil)
	handler := auth.NewHandler(nil, svc)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		handler.MountPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware{Issuer: issuer}.Authenticate)
			handler.MountProtected(r)
		})
	})
	return fixture{router: r, repo: repo, audit: recorder, issuer: issuer}
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestLoginInvalidCredentialsIsNotAudited(t *testing.T) {
	f := newFixture(t)

	res := postJSON(t, f.router, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), `"code":"AUTH_INVALID"`)

	res = postJSON(t, f.router, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	assert.Equal(t, 0, f.audit.len())
}

func TestLoginInactivePrincipalRejected(t *testing.T) {
	f := newFixture(t)
	res := postJSON(t, f.router, "/api/auth/login", map[string]string{"email": "bob@example.com", "password": "correct-pass"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, 0, f.audit.len())
}

func TestLoginSuccessIssuesTokenAndAudits(t *testing.T) {
	f := newFixture(t)
	res := postJSON(t, f.router, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "correct-pass"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body auth.LoginResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, int64(1), body.Principal.ID)
	assert.Equal(t, shared.RoleTechnician, body.Principal.Role)

	require.Equal(t, 1, f.audit.len())
	entry := f.audit.entries[0]
	assert.Equal(t, "login", entry.Action)
	assert.Equal(t, "auth", entry.Module)
	assert.Equal(t, int64(1), entry.ActorID)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	me := httptest.NewRecorder()
	f.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"alice@example.com"`)
}

func TestMeRequiresToken(t *testing.T) {
	f := newFixture(t)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestVerifyReflectsDeactivation(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.issuer.Issue(auth.Principal{ID: 1, Email: "alice@example.com", Role: shared.RoleTechnician})
	require.NoError(t, err)

	res := postJSON(t, f.router, "/api/auth/verify", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"valid":true`)

	f.repo.deactivate(1)

	res = postJSON(t, f.router, "/api/auth/verify", map[string]string{}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"valid":false}`, res.Body.String())
}

func TestVerifyGarbageToken(t *testing.T) {
	f := newFixture(t)
	res := postJSON(t, f.router, "/api/auth/verify", map[string]string{"token": "nope"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"valid":false}`, res.Body.String())
}

func TestRegisterCreatesUserRole(t *testing.T) {
	f := newFixture(t)
	res := postJSON(t, f.router, "/api/auth/register", map[string]string{"name": "Carol", "email": "carol@example.com", "password": "long-enough"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"role":"user"`)
	assert.Equal(t, 1, f.audit.len())

	res = postJSON(t, f.router, "/api/auth/register", map[string]string{"name": "Carol", "email": "carol@example.com", "password": "long-enough"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = postJSON(t, f.router, "/api/auth/register", map[string]string{"name": "Dan", "email": "dan@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
