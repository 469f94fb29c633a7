package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountPublic registers the routes reachable without a token.
func (h *Handler) MountPublic(r chi.Router) {
	r.With(httprate.LimitByIP(loginRateLimit, loginRateWindow)).Post("/login", h.handleLogin)
	r.With(httprate.LimitByIP(loginRateLimit, loginRateWindow)).Post("/register", h.handleRegister)
	r.Post("/verify", h.handleVerify)
}

// MountProtected registers routes that expect Middleware.Authenticate upstream.
func (h *Handler) MountProtected(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		// Malformed credentials are indistinguishable from wrong ones.
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password, httpx.ClientIP(r))
	if err != nil {
		h.respond(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, httpx.ClientIP(r))
	if err != nil {
		h.respond(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, principal.Actor())
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" && r.ContentLength != 0 {
		var req verifyRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		token = req.Token
	}
	result, err := h.service.Verify(r.Context(), token)
	if err != nil {
		h.respond(w, "verify", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrAuthInvalid) && !errors.Is(err, shared.ErrValidation) {
		h.logger.Error("auth "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
