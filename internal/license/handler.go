package license

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// AuditRecorder receives best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Handler exposes license endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     AuditRecorder
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, recorder AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, audit: recorder, validator: validator.New()}
}

// MountPublic registers the unauthenticated status endpoint.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/status", h.handleStatus)
}

// MountAdmin registers activation and key issuance. The caller is expected
// to install authentication and an admin role check.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Post("/activate", h.handleActivate)
	r.Post("/keys", h.handleGenerate)
}

type activateRequest struct {
	Key string `json:"key" validate:"required"`
}

type generateRequest struct {
	Company string `json:"company" validate:"required,max=200"`
	Days    int    `json:"days" validate:"required,min=1,max=36500"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.logger.Error("license status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	activation, err := h.service.Activate(r.Context(), req.Key)
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("license activate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok && h.audit != nil {
		h.audit.Record(r.Context(), audit.Entry{
			ActorID:    actor.ID,
			Action:     "activate",
			Module:     "license",
			Detail:     map[string]any{"company": activation.Company, "expiration": activation.Expiration},
			SourceAddr: httpx.ClientIP(r),
		})
	}
	httpx.JSON(w, http.StatusOK, activation)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := h.service.GenerateKey(req.Company, req.Days)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok && h.audit != nil {
		h.audit.Record(r.Context(), audit.Entry{
			ActorID:    actor.ID,
			Action:     "generate_key",
			Module:     "license",
			Detail:     map[string]any{"company": req.Company, "days": req.Days},
			SourceAddr: httpx.ClientIP(r),
		})
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"key": key})
}
