package rbac

import (
	"log/slog"
	"net/http"

	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// Middleware wires capability checks for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the authenticated actor holds capability on module.
func (m Middleware) Require(module string, capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrAuthInvalid)
				return
			}
			allowed, err := m.Service.Check(r.Context(), actor, module, capability)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.String("module", module), slog.String("capability", capability.String()), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
