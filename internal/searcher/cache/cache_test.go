package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func testPlan(idx *index.Index, query string, p float64, limit int) *executor.Plan {
	return &executor.Plan{
		Query:   query,
		Postfix: parser.Parse(query, idx, nil),
		PNorm:   p,
		Limit:   limit,
		Index:   idx,
	}
}

func testIndex() *index.Index {
	return index.New(map[string]map[string]float64{"go": {"a": 0.5}})
}

func result(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: "a", Score: 0.5}},
	}
}

func TestKey(t *testing.T) {
	idx := testIndex()
	base := Key(testPlan(idx, "go OR rust", 2, 10))

	if Key(testPlan(idx, "GO or RUST", 2, 10)) != base {
		t.Error("same postfix should share a key")
	}
	differ := map[string]*executor.Plan{
		"p":     testPlan(idx, "go OR rust", 3, 10),
		"limit": testPlan(idx, "go OR rust", 2, 5),
		"query": testPlan(idx, "go AND rust", 2, 10),
		"index": testPlan(index.New(map[string]map[string]float64{"go": {"b": 1}}), "go OR rust", 2, 10),
	}
	for name, plan := range differ {
		if Key(plan) == base {
			t.Errorf("changing %s should change the key", name)
		}
	}
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemStore(), time.Minute, WithMetrics(m))
	plan := testPlan(testIndex(), "go", 2, 10)

	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return result("go"), nil
	}

	res, hit, err := c.GetOrCompute(context.Background(), plan, compute)
	if err != nil || hit || res.TotalHits != 1 {
		t.Fatalf("first call: res=%+v hit=%v err=%v", res, hit, err)
	}

	other := testPlan(testIndex(), "Go", 2, 10)
	res, hit, err = c.GetOrCompute(context.Background(), other, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if res.Query != "Go" {
		t.Errorf("cached result should carry the caller's query, got %q", res.Query)
	}
	if calls != 1 {
		t.Errorf("compute called %d times", calls)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 {
		t.Errorf("stats = %+v", s)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("cache_hits_total = %v", got)
	}
}

func TestGetOrComputeDeduplicatesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	plan := testPlan(testIndex(), "go", 2, 10)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result("go"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			if _, _, err := c.GetOrCompute(context.Background(), plan, compute); err != nil {
				t.Error(err)
			}
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute calls = %d, want 1", n)
	}
}

func TestGetOrComputeSurvivesCancelledLeader(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	plan := testPlan(testIndex(), "go", 2, 10)

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return result("go"), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, plan, compute)
		leaderErr <- err
	}()
	<-started

	followerErr := make(chan error, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), plan, compute)
		if err == nil && res.TotalHits != 1 {
			err = errors.New("unexpected result")
		}
		followerErr <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)

	if err := <-followerErr; err != nil {
		t.Errorf("waiter failed after leader cancelled: %v", err)
	}
	if err := <-leaderErr; err != nil {
		t.Errorf("leader: %v", err)
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	plan := testPlan(testIndex(), "go", 2, 10)

	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), plan, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(store.data) != 0 {
		t.Errorf("failed computation was cached")
	}
}

func TestStoreFailureOpensBreaker(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	br := resilience.NewBreaker("test", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(store, time.Minute, WithBreaker(br))
	plan := testPlan(testIndex(), "go", 2, 10)

	for range 3 {
		res, hit, err := c.GetOrCompute(context.Background(), plan, func(context.Context) (*executor.SearchResult, error) {
			return result("go"), nil
		})
		if err != nil || hit || res == nil {
			t.Fatalf("store failure should degrade to compute: hit=%v err=%v", hit, err)
		}
	}
	if br.State() != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", br.State())
	}
	if s := c.Stats(); s.Breaker != "open" || s.Errors != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = []byte("x")
	c := New(store, time.Minute)
	c.Set(context.Background(), testPlan(testIndex(), "go", 2, 10), result("go"))
	c.Set(context.Background(), testPlan(testIndex(), "go", 3, 10), result("go"))

	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.data) != 1 {
		t.Errorf("remaining keys = %v", store.data)
	}
}
