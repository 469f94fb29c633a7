package license

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/platform/httpx"
)

type countingMetrics struct {
	denied, failOpen int
}

func (c *countingMetrics) LicenseDenied()   { c.denied++ }
func (c *countingMetrics) LicenseFailOpen() { c.failOpen++ }

func serveGate(t *testing.T, gate *Gate, path string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	res := httptest.NewRecorder()
	gate.Middleware(next).ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestGateWithoutLicenseBlocksProtectedPaths(t *testing.T) {
	svc, _, _ := newTestService(t)
	metrics := &countingMetrics{}
	gate := NewGate(svc, nil, "support@assetdesk.example", nil, metrics)

	for _, path := range DefaultAllowlist {
		assert.Equal(t, http.StatusOK, serveGate(t, gate, path).Code, path)
	}

	for _, path := range []string{"/api/tickets", "/api/auth/me", "/api/permissions/3", "/api/license/keys", "/"} {
		res := serveGate(t, gate, path)
		require.Equal(t, http.StatusForbidden, res.Code, path)
		var body httpx.ErrorBody
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, httpx.CodeLicenseExpired, body.Code)
		assert.Equal(t, "support@assetdesk.example", body.Support)
	}
	assert.Equal(t, 5, metrics.denied)
}

func TestGateAllowsWithValidLicense(t *testing.T) {
	svc, _, _ := newTestService(t)
	key, err := svc.GenerateKey("Acme", 10)
	require.NoError(t, err)
	_, err = svc.Activate(context.Background(), key)
	require.NoError(t, err)

	gate := NewGate(svc, nil, "", nil, nil)
	assert.Equal(t, http.StatusOK, serveGate(t, gate, "/api/tickets").Code)
}

func TestGateFailsOpenWhenStoreUnreachable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.failErr = errors.New("dial tcp: connection refused")
	metrics := &countingMetrics{}
	gate := NewGate(svc, nil, "", nil, metrics)

	assert.Equal(t, http.StatusOK, serveGate(t, gate, "/api/tickets").Code)
	assert.Equal(t, 1, metrics.failOpen)
	assert.Equal(t, 0, metrics.denied)
}
