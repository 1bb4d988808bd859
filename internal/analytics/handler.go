package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultTop     = 10
	maxTop         = 100
	defaultHistory = 20
	maxHistory     = 500
)

// History lists persisted statistics snapshots, newest first.
type History interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

// Handler serves the aggregated statistics and, when a History is
// configured, the persisted snapshots.
type Handler struct {
	aggregator *Aggregator
	history    History
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithHistory enables GET /api/v1/analytics/history.
func (h *Handler) WithHistory(history History) *Handler {
	h.history = history
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	if h.history != nil {
		mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	}
}

// Stats writes the current statistics. The optional top parameter bounds
// the ranked lists (default 10, at most 100).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, ok := h.intParam(w, r, "top", defaultTop, maxTop)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Snapshot(top))
}

// History writes up to limit persisted snapshots (default 20, at most 500).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit", defaultHistory, maxHistory)
	if !ok {
		return
	}
	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing snapshots failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def, upper int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be a positive integer"})
		return 0, false
	}
	return min(n, upper), true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
