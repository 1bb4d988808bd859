// Package executor is the query entry point: it parses a query against the
// current index, evaluates it in parallel and shapes the result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/tracing"
)

// Search parses query against idx, stemming unknown words with norm, and
// returns every document scoring above ranker.MinRelevance. A query that
// parses to nothing returns an empty ranking.
func Search(ctx context.Context, query string, p float64, idx *index.Index, norm tokenizer.Normalizer) ([]ranker.ScoredDoc, error) {
	if idx == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	if !ranker.ValidPNorm(p) {
		return nil, apperrors.Invalid("p-norm must be a finite number greater than 0, got %v", p)
	}
	return Evaluate(ctx, parser.Parse(query, idx, stemmer(norm)), idx, Options{PNorm: p})
}

// IndexProvider yields the index queries should run against. Current may
// return nil before the first load.
type IndexProvider interface {
	Current() *index.Index
}

type Request struct {
	Query string  `json:"query"`
	PNorm float64 `json:"p"`
	Limit int     `json:"limit"`
}

// Plan is a parsed request bound to the index it was parsed against, so
// evaluation sees the same index even if a reload happens in between.
type Plan struct {
	Query   string
	Postfix parser.Postfix
	PNorm   float64
	Limit   int
	Index   *index.Index
}

type SearchResult struct {
	Query        string             `json:"query"`
	Postfix      string             `json:"postfix"`
	PNorm        float64            `json:"p"`
	TotalHits    int                `json:"total_hits"`
	Results      []ranker.ScoredDoc `json:"results"`
	IndexVersion string             `json:"index_version"`
}

type Executor struct {
	indexes      IndexProvider
	norm         tokenizer.Normalizer
	workers      int
	timeout      time.Duration
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

type Option func(*Executor)

// WithWorkers bounds evaluation goroutines per query.
func WithWorkers(n int) Option {
	return func(e *Executor) { e.workers = n }
}

// WithTimeout bounds the evaluation of a single query; zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLimits sets the result count used when a request has no limit and
// the ceiling applied to explicit limits.
func WithLimits(defaultLimit, maxResults int) Option {
	return func(e *Executor) {
		e.defaultLimit = defaultLimit
		e.maxResults = maxResults
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(indexes IndexProvider, norm tokenizer.Normalizer, opts ...Option) *Executor {
	e := &Executor{
		indexes:      indexes,
		norm:         norm,
		defaultLimit: 50,
		maxResults:   1000,
		logger:       slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute plans and runs req under a root trace span.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log(logger.FromContext(ctx))
	}()

	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan)
}

// Plan validates req and parses its query against the current index.
func (e *Executor) Plan(ctx context.Context, req Request) (*Plan, error) {
	if !ranker.ValidPNorm(req.PNorm) {
		return nil, apperrors.Invalid("p-norm must be a finite number greater than 0, got %v", req.PNorm)
	}
	idx := e.indexes.Current()
	if idx == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotLoaded, http.StatusServiceUnavailable, "index not loaded")
	}

	_, span := tracing.StartChildSpan(ctx, "parse")
	defer span.End()
	tokens := parser.Parse(req.Query, idx, stemmer(e.norm))
	span.SetAttr("postfix", tokens.String())

	return &Plan{
		Query:   req.Query,
		Postfix: tokens,
		PNorm:   req.PNorm,
		Limit:   e.limit(req.Limit),
		Index:   idx,
	}, nil
}

// Run evaluates plan. TotalHits counts every document above the relevance
// floor; Results holds the first plan.Limit of them.
func (e *Executor) Run(ctx context.Context, plan *Plan) (*SearchResult, error) {
	ctx, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()

	all, err := resilience.WithTimeout(ctx, e.timeout, "evaluate", func(ctx context.Context) ([]ranker.ScoredDoc, error) {
		return Evaluate(ctx, plan.Postfix, plan.Index, Options{PNorm: plan.PNorm, Workers: e.workers})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrDeadline) {
			if e.metrics != nil {
				e.metrics.SearchQueriesTotal.WithLabelValues("timeout").Inc()
			}
			return nil, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout,
				"query evaluation exceeded %v", e.timeout)
		}
		return nil, fmt.Errorf("evaluating %q: %w", plan.Postfix.String(), err)
	}

	results := all
	if plan.Limit > 0 && len(results) > plan.Limit {
		results = results[:plan.Limit]
	}
	span.SetAttr("documents", plan.Index.NumDocs())
	span.SetAttr("total_hits", len(all))

	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	e.logger.Debug("query executed",
		"request_id", logger.RequestID(ctx),
		"query", plan.Query,
		"postfix", plan.Postfix.String(),
		"p", plan.PNorm,
		"total_hits", len(all),
		"returned", len(results),
	)
	return &SearchResult{
		Query:        plan.Query,
		Postfix:      plan.Postfix.String(),
		PNorm:        plan.PNorm,
		TotalHits:    len(all),
		Results:      results,
		IndexVersion: plan.Index.Fingerprint(),
	}, nil
}

func (e *Executor) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if e.maxResults > 0 && (limit <= 0 || limit > e.maxResults) {
		limit = e.maxResults
	}
	return limit
}

func stemmer(norm tokenizer.Normalizer) parser.Stemmer {
	if norm == nil {
		return nil
	}
	return norm
}
