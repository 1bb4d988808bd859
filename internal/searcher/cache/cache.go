// Package cache memoizes search results in Redis. Keys are derived from the
// parsed query, p, the limit and the index fingerprint, so a reload never
// serves results computed against an older index.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the byte-oriented backend; *redis.Client satisfies it. Get must
// report a missing key with an error recognised by redis.IsNilError.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	Breaker string  `json:"breaker"`
}

type QueryCache struct {
	store    Store
	ttl      time.Duration
	breaker  *resilience.Breaker
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

type Option func(*QueryCache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithBreaker replaces the default breaker guarding store calls.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *QueryCache) { c.breaker = b }
}

func New(store Store, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
		})
	}
	return c
}

// Get returns the cached result for plan. Store failures and an open
// breaker are reported as misses.
func (c *QueryCache) Get(ctx context.Context, plan *executor.Plan) (*executor.SearchResult, bool) {
	key := Key(plan)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.fail("get", key, err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	// Queries differing only in spelling share a key.
	result.Query = plan.Query
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", plan.Query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, plan *executor.Plan, result *executor.SearchResult) {
	key := Key(plan)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	}); err != nil {
		c.fail("set", key, err)
	}
}

// GetOrCompute returns the cached result for plan or computes and stores
// it. Concurrent misses on the same key share one computation, which runs
// detached from the cancellation of whichever caller started it. The bool
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *executor.Plan,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, plan); ok {
		return result, true, nil
	}
	shared := context.WithoutCancel(ctx)
	val, err, _ := c.group.Do(Key(plan), func() (any, error) {
		result, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, plan, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := *val.(*executor.SearchResult)
	result.Query = plan.Query
	return &result, false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.failures.Load(),
		Breaker: c.breaker.State().String(),
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}

// Key derives the cache key of plan.
func Key(plan *executor.Plan) string {
	raw := plan.Postfix.String() +
		"|p=" + strconv.FormatFloat(plan.PNorm, 'g', -1, 64) +
		"|limit=" + strconv.Itoa(plan.Limit) +
		"|index=" + plan.Index.Fingerprint()
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) fail(op, key string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", op, "key", key)
		return
	}
	c.failures.Add(1)
	c.logger.Error("cache "+op+" failed", "key", key, "error", err)
}
