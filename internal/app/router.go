package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/assetdesk/assetdesk/internal/audit/http"
	"github.com/assetdesk/assetdesk/internal/auth"
	"github.com/assetdesk/assetdesk/internal/dashboard"
	"github.com/assetdesk/assetdesk/internal/license"
	"github.com/assetdesk/assetdesk/internal/notify"
	"github.com/assetdesk/assetdesk/internal/observability"
	"github.com/assetdesk/assetdesk/internal/rbac"
	"github.com/assetdesk/assetdesk/internal/shared"
	"github.com/assetdesk/assetdesk/internal/tickets"
	"github.com/assetdesk/assetdesk/internal/users"
	"github.com/assetdesk/assetdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Gate           *license.Gate
	AuthMiddleware auth.Middleware
	RBACMiddleware rbac.Middleware

	AuthHandler        *auth.Handler
	LicenseHandler     *license.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audithttp.Handler
	NotifyHandler      *notify.Handler
	DashboardHandler   *dashboard.Handler
	UsersHandler       *users.Handler
	TicketsHandler     *tickets.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router. Middleware order is license gate,
// then credential verification, then capability checks inside each group.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	if params.Gate != nil {
		r.Use(params.Gate.Middleware)
	}

	timeout := RequestTimeout(params.Config)
	authn := params.AuthMiddleware.Authenticate

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.With(timeout).Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(api chi.Router) {
		if params.AuthHandler != nil {
			api.Route("/auth", func(ar chi.Router) {
				ar.With(timeout).Group(params.AuthHandler.MountPublic)
				ar.With(timeout, authn).Group(params.AuthHandler.MountProtected)
			})
		}
		if params.LicenseHandler != nil {
			api.Route("/license", func(lr chi.Router) {
				lr.With(timeout).Group(params.LicenseHandler.MountPublic)
				lr.With(timeout, authn, auth.RequireRole(shared.RoleAdmin)).Group(params.LicenseHandler.MountAdmin)
			})
		}
		if params.NotifyHandler != nil {
			api.Route("/notifications", func(nr chi.Router) {
				nr.With(params.AuthMiddleware.AuthenticateStream).Group(params.NotifyHandler.MountStream)
				nr.With(timeout, authn).Group(func(g chi.Router) {
					params.NotifyHandler.MountRoutes(g, params.RBACMiddleware.Require(rbac.ModuleNotifications, rbac.CapabilityCreate))
				})
			})
		}

		api.Group(func(pr chi.Router) {
			pr.Use(timeout, authn)
			if params.PermissionsHandler != nil {
				pr.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				pr.Route("/audit", params.AuditHandler.MountRoutes)
			}
			if params.DashboardHandler != nil {
				pr.Route("/dashboard", func(dr chi.Router) {
					dr.Use(params.RBACMiddleware.Require(rbac.ModuleDashboard, rbac.CapabilityView))
					params.DashboardHandler.MountRoutes(dr)
				})
			}
			if params.UsersHandler != nil {
				pr.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.TicketsHandler != nil {
				pr.Route("/tickets", params.TicketsHandler.MountRoutes)
			}
		})
	})

	return r
}
