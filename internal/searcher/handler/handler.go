// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/reload"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/tracing"
)

// SearchExecutor plans a request against the current index and runs it.
type SearchExecutor interface {
	Plan(ctx context.Context, req executor.Request) (*executor.Plan, error)
	Run(ctx context.Context, plan *executor.Plan) (*executor.SearchResult, error)
}

type IndexStats struct {
	Loaded    bool    `json:"loaded"`
	Version   string  `json:"version,omitempty"`
	Documents int     `json:"documents"`
	Terms     int     `json:"terms"`
	Postings  int     `json:"postings"`
	MaxWeight float64 `json:"max_weight"`
}

// Reloader re-reads the index snapshot on demand.
type Reloader interface {
	Reload(ctx context.Context, trigger string) error
}

type Handler struct {
	executor     SearchExecutor
	indexes      executor.IndexProvider
	reloader     Reloader
	cache        *cache.QueryCache
	tracker      analytics.Tracker
	metrics      *metrics.Metrics
	defaultPNorm float64
	logger       *slog.Logger
}

type Option func(*Handler)

// WithCache serves repeated queries from c. Without it every query is
// evaluated.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithReloader enables POST /api/v1/index/reload.
func WithReloader(r Reloader) Option {
	return func(h *Handler) { h.reloader = r }
}

func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithDefaultPNorm sets the p used when a request omits it.
func WithDefaultPNorm(p float64) Option {
	return func(h *Handler) { h.defaultPNorm = p }
}

func New(exec SearchExecutor, indexes executor.IndexProvider, opts ...Option) *Handler {
	h := &Handler{
		executor:     exec,
		indexes:      indexes,
		defaultPNorm: 2.0,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	if h.reloader != nil {
		mux.HandleFunc("POST /api/v1/index/reload", h.IndexReload)
	}
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	req, err := h.parseRequest(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	span.SetAttr("p", req.PNorm)

	plan, err := h.executor.Plan(ctx, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Run(ctx, plan)
		})
	} else {
		result, err = h.executor.Run(ctx, plan)
	}
	if err != nil {
		log.Error("search execution failed", "query", req.Query, "error", err)
		h.fail(w, err)
		return
	}

	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	h.observe(result, cacheHit, latency)
	log.Info("search completed",
		"query", req.Query,
		"p", req.PNorm,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:         analytics.EventSearch,
			Query:        req.Query,
			Postfix:      result.Postfix,
			PNorm:        req.PNorm,
			Terms:        plan.Postfix.Terms(),
			TotalHits:    result.TotalHits,
			Returned:     len(result.Results),
			LatencyUs:    latency.Microseconds(),
			CacheHit:     cacheHit,
			IndexVersion: result.IndexVersion,
			Timestamp:    time.Now().UTC(),
			RequestID:    logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

// parseRequest reads q, p and limit. q must be present but may be blank,
// in which case the search returns no results.
func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	values := r.URL.Query()
	if !values.Has("q") {
		return executor.Request{}, apperrors.Invalid("query parameter 'q' is required")
	}
	req := executor.Request{Query: values.Get("q"), PNorm: h.defaultPNorm}
	if raw := strings.TrimSpace(values.Get("p")); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, apperrors.Invalid("p must be a number, got %q", raw)
		}
		req.PNorm = p
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return req, apperrors.Invalid("limit must be a positive integer")
		}
		req.Limit = limit
	}
	return req, nil
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	if result.TotalHits == 0 {
		h.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(status).Inc()
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	idx := h.indexes.Current()
	if idx == nil {
		h.writeJSON(w, http.StatusOK, IndexStats{})
		return
	}
	h.writeJSON(w, http.StatusOK, IndexStats{
		Loaded:    true,
		Version:   idx.Fingerprint(),
		Documents: idx.NumDocs(),
		Terms:     idx.NumTerms(),
		Postings:  idx.NumPostings(),
		MaxWeight: idx.MaxWeight(),
	})
}

// IndexReload reloads the snapshot and reports the index now serving.
func (h *Handler) IndexReload(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(r.Context(), reload.TriggerManual); err != nil {
		h.logger.Error("manual reload failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.IndexStats(w, r)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// fail writes err with the status its AppError carries. Messages of
// internal errors are not exposed.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if h.metrics != nil && status != http.StatusGatewayTimeout {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	}
	message := "search failed"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status != http.StatusInternalServerError {
		message = err.Error()
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
