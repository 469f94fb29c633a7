package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/assetdesk/assetdesk/internal/platform/httpx"
)

// Handler serves the statistics endpoint.
type Handler struct {
	logger *slog.Logger
	cache  *Cache
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, cache *Cache) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, cache: cache}
}

// MountRoutes registers GET /stats.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stats", h.handleStats)
}

type statsResponse struct {
	Snapshot
	Cached bool `json:"cached"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	snap, cached, err := h.cache.Get(r.Context(), refresh)
	if err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statsResponse{Snapshot: snap, Cached: cached})
}
