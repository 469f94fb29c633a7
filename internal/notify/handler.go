package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

const defaultHeartbeat = 25 * time.Second

// AuditRecorder receives best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Handler exposes notification endpoints for the authenticated principal.
type Handler struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	broker     Broker
	audit      AuditRecorder
	validator  *validator.Validate
	heartbeat  time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, dispatcher *Dispatcher, broker Broker, recorder AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		broker:     broker,
		audit:      recorder,
		validator:  validator.New(),
		heartbeat:  defaultHeartbeat,
	}
}

// MountRoutes registers the inbox endpoints. createGuard protects POST /,
// since notifications are created on behalf of others.
func (h *Handler) MountRoutes(r chi.Router, createGuard func(http.Handler) http.Handler) {
	r.Get("/", h.handleList)
	r.Get("/unread-count", h.handleUnreadCount)
	r.Post("/read-all", h.handleMarkAllRead)
	r.Post("/{id}/read", h.handleMarkRead)
	r.Group(func(r chi.Router) {
		if createGuard != nil {
			r.Use(createGuard)
		}
		r.Post("/", h.handleCreate)
	})
}

// MountStream registers the live Server-Sent Events channel.
func (h *Handler) MountStream(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

type createRequest struct {
	RecipientID int64  `json:"recipientId" validate:"required,gt=0"`
	Kind        string `json:"kind" validate:"omitempty,oneof=info success warning error"`
	Title       string `json:"title" validate:"required,max=200"`
	Body        string `json:"body" validate:"max=2000"`
	Link        string `json:"link" validate:"omitempty,max=500"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.dispatcher.Create(r.Context(), req.RecipientID, Message{
		Kind:  Kind(req.Kind),
		Title: req.Title,
		Body:  req.Body,
		Link:  req.Link,
	})
	if err != nil {
		h.fail(w, "create notification", err)
		return
	}
	if h.audit != nil {
		h.audit.Record(r.Context(), audit.Entry{
			ActorID:    actor.ID,
			Action:     "create",
			Module:     "notifications",
			TargetID:   strconv.FormatInt(n.ID, 10),
			Detail:     map[string]any{"recipientId": n.UserID, "kind": n.Kind},
			SourceAddr: httpx.ClientIP(r),
		})
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.dispatcher.List(r.Context(), actor.ID, filter)
	if err != nil {
		h.fail(w, "list notifications", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid notification id", shared.ErrValidation))
		return
	}
	if err := h.dispatcher.MarkRead(r.Context(), actor.ID, id); err != nil {
		h.fail(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	updated, err := h.dispatcher.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, "mark all notifications read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	count, err := h.dispatcher.UnreadCount(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, "unread count", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

// handleStream joins the principal's topic for the lifetime of the request
// and relays every payload as an SSE "notification" event.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthInvalid)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok || h.broker == nil {
		httpx.Error(w, http.StatusNotImplemented, httpx.CodeInternal, "streaming unsupported")
		return
	}
	sub, err := h.broker.Subscribe(r.Context(), Topic(actor.ID))
	if err != nil {
		h.fail(w, "subscribe notifications", err)
		return
	}
	defer func() { _ = sub.Close() }()

	// The server write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("read")); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: invalid read filter", shared.ErrValidation)
		}
		filter.Read = &read
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return ListFilter{}, fmt.Errorf("%w: invalid limit", shared.ErrValidation)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
