package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/watch"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
)

const (
	TriggerStartup = "startup"
	TriggerFile    = "file"
	TriggerKafka   = "kafka"
	TriggerManual  = "manual"
)

// Invalidator drops results computed against a previous index.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Reloader struct {
	holder  *Holder
	path    string
	cache   Invalidator
	metrics *metrics.Metrics
	logger  *slog.Logger
	mu      sync.Mutex
}

type Option func(*Reloader)

func WithInvalidator(inv Invalidator) Option {
	return func(r *Reloader) { r.cache = inv }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reloader) { r.metrics = m }
}

func New(holder *Holder, snapshotPath string, opts ...Option) *Reloader {
	r := &Reloader{
		holder: holder,
		path:   snapshotPath,
		logger: slog.Default().With("component", "index-reloader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path is the snapshot file the reloader loads.
func (r *Reloader) Path() string { return r.path }

// Reload loads the snapshot and installs it if its contents differ from the
// active index. On error the active index is kept. Reloads are serialized.
func (r *Reloader) Reload(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	idx, err := snapshot.Load(r.path)
	if err != nil {
		r.observe(trigger, "error")
		return fmt.Errorf("reloading index (%s): %w", trigger, err)
	}

	old := r.holder.Current()
	if old != nil && old.Fingerprint() == idx.Fingerprint() {
		r.observe(trigger, "unchanged")
		r.logger.Debug("snapshot unchanged", "trigger", trigger, "version", idx.Fingerprint())
		return nil
	}
	r.holder.Swap(idx)
	r.observe(trigger, "success")
	if r.metrics != nil {
		r.metrics.IndexTerms.Set(float64(idx.NumTerms()))
		r.metrics.IndexDocuments.Set(float64(idx.NumDocs()))
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			// Stale entries are unreachable anyway: cache keys include
			// the index fingerprint.
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	r.logger.Info("index reloaded",
		"trigger", trigger,
		"path", r.path,
		"version", idx.Fingerprint(),
		"terms", idx.NumTerms(),
		"documents", idx.NumDocs(),
		"duration", time.Since(start),
	)
	return nil
}

// Watcher returns a watcher that reloads whenever the snapshot file is
// written or replaced. Failed reloads are logged and the old index kept.
func (r *Reloader) Watcher(opts ...watch.Option) *watch.Watcher {
	return watch.File(r.path, func(ctx context.Context) {
		if err := r.Reload(ctx, TriggerFile); err != nil {
			r.logger.Error("snapshot reload failed", "error", err)
		}
	}, opts...)
}

func (r *Reloader) observe(trigger, status string) {
	if r.metrics != nil {
		r.metrics.IndexReloadsTotal.WithLabelValues(trigger, status).Inc()
	}
}
