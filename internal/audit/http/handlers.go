package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// QueryService defines the read contract for the audit trail.
type QueryService interface {
	List(ctx context.Context, filters audit.Filters) ([]audit.Record, error)
	Summary(ctx context.Context, filters audit.SummaryFilters) (audit.Summary, error)
}

// Guard authorizes access to the audit endpoints.
type Guard func(http.Handler) http.Handler

// Handler serves audit listing and summary endpoints.
type Handler struct {
	logger  *slog.Logger
	service QueryService
	guard   Guard
}

// NewHandler builds an audit handler. A nil guard leaves authorization to
// the caller.
func NewHandler(logger *slog.Logger, service QueryService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

type listResponse struct {
	Entries []audit.Record `json:"entries"`
	Limit   int            `json:"limit"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	records, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respond(w, "list audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Entries: records, Limit: shared.ClampLimit(filters.Limit)})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := audit.ParseWindow(q.Get("window"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := parseTime(q.Get("from"), "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseUpperBound(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters := audit.SummaryFilters{From: from, To: to, Window: window}
	summary, err := h.service.Summary(r.Context(), filters)
	if err != nil {
		h.respond(w, "summarize audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	var filters audit.Filters
	if raw := strings.TrimSpace(q.Get("actor")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return audit.Filters{}, fmt.Errorf("%w: invalid actor", shared.ErrValidation)
		}
		filters.ActorID = id
	}
	filters.Module = strings.TrimSpace(q.Get("module"))
	filters.Action = strings.TrimSpace(q.Get("action"))
	var err error
	if filters.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return audit.Filters{}, err
	}
	if filters.To, err = parseUpperBound(q.Get("to")); err != nil {
		return audit.Filters{}, err
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return audit.Filters{}, fmt.Errorf("%w: invalid limit", shared.ErrValidation)
		}
		filters.Limit = limit
	}
	return filters, nil
}

const dateLayout = "2006-01-02"

// parseTime accepts RFC3339 timestamps or plain dates.
func parseTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid %s", shared.ErrValidation, field)
}

// parseUpperBound parses an inclusive "to" bound. A plain date covers the
// whole day, up to the last microsecond Postgres can store.
func parseUpperBound(raw string) (time.Time, error) {
	t, err := parseTime(raw, "to")
	if err != nil || t.IsZero() {
		return t, err
	}
	if _, dateErr := time.Parse(dateLayout, strings.TrimSpace(raw)); dateErr == nil {
		return t.Add(24*time.Hour - time.Microsecond), nil
	}
	return t, nil
}

func (h *Handler) respond(w http.ResponseWriter, message string, err error) {
	if !isClientError(err) {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	return errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound)
}
