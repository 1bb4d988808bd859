// Package indexer builds the weighted inverted index from a document
// source in three passes: parallel term counting, TF-IDF weighting and
// global normalization.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
)

// BuildStats describes a finished build.
type BuildStats struct {
	Source       string        `json:"source"`
	Documents    int           `json:"documents"`
	Terms        int           `json:"terms"`
	Postings     int           `json:"postings"`
	MaxRawWeight float64       `json:"max_raw_weight"`
	Duration     time.Duration `json:"duration"`
}

type Builder struct {
	norm    tokenizer.Normalizer
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Builder)

// WithWorkers sets the number of counting partitions; values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// WithMetrics records build counters and durations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func NewBuilder(norm tokenizer.Normalizer, opts ...Option) *Builder {
	b := &Builder{
		norm:    norm,
		workers: 1,
		logger:  slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	return b
}

// Build reads every document from src and returns a new immutable index.
// The first unreadable document or duplicate ID aborts the build.
func (b *Builder) Build(ctx context.Context, src source.Source) (*index.Index, BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Source: src.Name()}

	counts, err := b.count(ctx, src)
	if err != nil {
		b.observe("error", 0)
		return nil, stats, fmt.Errorf("counting terms from %s: %w", src.Name(), err)
	}

	weights, maxRaw := counts.Weights()
	idx := index.New(weights)

	stats.Documents = counts.DocCount()
	stats.Terms = idx.NumTerms()
	stats.Postings = idx.NumPostings()
	stats.MaxRawWeight = maxRaw
	stats.Duration = time.Since(start)

	if maxRaw == 0 {
		b.logger.Warn("all weights are zero; normalization skipped",
			"documents", stats.Documents,
			"terms", stats.Terms,
		)
	}
	b.logger.Info("index built",
		"source", stats.Source,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"max_raw_weight", maxRaw,
		"duration", stats.Duration,
	)
	b.observe("success", stats.Documents)
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.Observe(stats.Duration.Seconds())
	}
	return idx, stats, nil
}

// count is the first pass. One goroutine streams the source and routes each
// document to the partition that owns its ID; each partition worker
// normalizes text and accumulates its own TermCounts.
func (b *Builder) count(ctx context.Context, src source.Source) (*index.TermCounts, error) {
	router := partition.NewRouter(b.workers)
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan source.Document, router.NumPartitions())
	for i := range queues {
		queues[i] = make(chan source.Document, 64)
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return src.Each(gctx, func(doc source.Document) error {
			select {
			case queues[router.Route(doc.ID)] <- doc:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	for i, q := range queues {
		counts, err := router.Counts(i)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			for doc := range q {
				if err := counts.AddDocument(doc.ID, b.norm.Normalize(doc.Text)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if b.metrics != nil {
		for i, n := range router.DocCounts() {
			b.metrics.PartitionDocCount.WithLabelValues(strconv.Itoa(i)).Set(float64(n))
		}
	}
	return router.Merge()
}

func (b *Builder) observe(status string, docs int) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	b.metrics.DocsIndexedTotal.Add(float64(docs))
}
