package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

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

// PermissionsHandler exposes permission read, replace and check endpoints.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	audit     AuditRecorder
	rbac      Middleware
	validator *validator.Validate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, recorder AuditRecorder, rbac Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, service: service, audit: recorder, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ModuleUsers, CapabilityView))
		r.Get("/{userID}", h.getPermissions)
		r.Get("/{userID}/check", h.checkPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ModuleUsers, CapabilityEdit))
		r.Put("/{userID}", h.savePermissions)
	})
}

type permissionsResponse struct {
	UserID      int64         `json:"userId"`
	Permissions PermissionSet `json:"permissions"`
}

type savePermissionsRequest struct {
	Permissions PermissionSet `json:"permissions" validate:"required"`
}

type checkResponse struct {
	UserID  int64  `json:"userId"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

func (h *PermissionsHandler) getPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	set, err := h.service.Permissions(r.Context(), userID)
	if err != nil {
		h.fail(w, "get permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{UserID: userID, Permissions: set})
}

func (h *PermissionsHandler) savePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req savePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.Save(r.Context(), userID, req.Permissions)
	if err != nil {
		h.fail(w, "save permissions", err)
		return
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok && h.audit != nil {
		h.audit.Record(r.Context(), audit.Entry{
			ActorID:    actor.ID,
			Action:     "update_permissions",
			Module:     ModuleUsers,
			TargetID:   strconv.FormatInt(userID, 10),
			Detail:     map[string]any{"permissions": saved},
			SourceAddr: httpx.ClientIP(r),
		})
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{UserID: userID, Permissions: saved})
}

func (h *PermissionsHandler) checkPermission(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	module := r.URL.Query().Get("module")
	action := r.URL.Query().Get("action")
	if module == "" {
		httpx.RespondError(w, fmt.Errorf("%w: module required", shared.ErrValidation))
		return
	}
	allowed, err := h.service.CheckByID(r.Context(), userID, module, action)
	if err != nil {
		h.fail(w, "check permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{UserID: userID, Module: module, Action: action, Allowed: allowed})
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}
	return id, nil
}
