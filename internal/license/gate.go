package license

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// DefaultAllowlist holds the paths reachable without a license check.
// Activation is still guarded by the credential verifier downstream.
var DefaultAllowlist = []string{
	"/healthz",
	"/metrics",
	"/api/license/status",
	"/api/license/activate",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/verify",
}

// Checker decides whether the installation may serve requests.
type Checker interface {
	Check(ctx context.Context) error
}

// GateMetrics counts gate decisions.
type GateMetrics interface {
	LicenseDenied()
	LicenseFailOpen()
}

// Gate is the first middleware of the chain.
type Gate struct {
	checker Checker
	logger  *slog.Logger
	support string
	allow   map[string]struct{}
	metrics GateMetrics
}

// NewGate constructs a Gate. A nil allowlist uses DefaultAllowlist.
func NewGate(checker Checker, logger *slog.Logger, support string, allowlist []string, metrics GateMetrics) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if allowlist == nil {
		allowlist = DefaultAllowlist
	}
	allow := make(map[string]struct{}, len(allowlist))
	for _, p := range allowlist {
		allow[p] = struct{}{}
	}
	return &Gate{checker: checker, logger: logger, support: support, allow: allow, metrics: metrics}
}

// Allowed reports whether path bypasses the license check.
func (g *Gate) Allowed(path string) bool {
	_, ok := g.allow[path]
	return ok
}

// Middleware short-circuits with LICENSE_EXPIRED when no valid license
// exists. If the license store cannot be reached the request is let
// through, favouring availability over strictness.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Allowed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		err := g.checker.Check(r.Context())
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, shared.ErrLicenseExpired):
			if g.metrics != nil {
				g.metrics.LicenseDenied()
			}
			httpx.LicenseExpired(w, g.support)
		default:
			if g.metrics != nil {
				g.metrics.LicenseFailOpen()
			}
			g.logger.Warn("license store unreachable, failing open", slog.String("path", r.URL.Path), slog.Any("error", err))
			next.ServeHTTP(w, r)
		}
	})
}
