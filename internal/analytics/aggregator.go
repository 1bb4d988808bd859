package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyUs      float64      `json:"avg_latency_us"`
	P50LatencyUs      int64        `json:"p50_latency_us"`
	P95LatencyUs      int64        `json:"p95_latency_us"`
	P99LatencyUs      int64        `json:"p99_latency_us"`
	AvgPNorm          float64      `json:"avg_p"`
	PNormUsage        []QueryCount `json:"p_usage"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Builds            BuildStats   `json:"builds"`
}

type BuildStats struct {
	Total      int64       `json:"total"`
	Failed     int64       `json:"failed"`
	AvgMs      float64     `json:"avg_duration_ms"`
	LastBuild  *BuildEvent `json:"last_build,omitempty"`
	LastFailed *BuildEvent `json:"last_failed,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu            sync.RWMutex
	totalSearches atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	zeroResults   atomic.Int64

	latencies   []int64
	next        int
	pSum        float64
	pCounts     map[string]int64
	queryCounts map[string]int64
	termCounts  map[string]int64
	zeroQueries map[string]int64

	builds      int64
	failed      int64
	buildMsSum  int64
	lastBuild   *BuildEvent
	lastFailure *BuildEvent

	startTime time.Time
	logger    *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		pCounts:     make(map[string]int64),
		queryCounts: make(map[string]int64),
		termCounts:  make(map[string]int64),
		zeroQueries: make(map[string]int64),
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start feeds a from consumer until ctx is cancelled. The consumer should
// have been built with HandleEvent(a).
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent folds every decodable message into agg. Undecodable messages
// are logged and committed so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := Decode(value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records a SearchEvent or BuildEvent. Other values are ignored.
func (a *Aggregator) Track(event any) {
	switch ev := event.(type) {
	case SearchEvent:
		a.recordSearch(ev)
	case *SearchEvent:
		a.recordSearch(*ev)
	case BuildEvent:
		a.recordBuild(ev)
	case *BuildEvent:
		a.recordBuild(*ev)
	}
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % maxLatencySamples
	}
	a.pSum += event.PNorm
	a.pCounts[strconv.FormatFloat(event.PNorm, 'g', -1, 64)]++
	a.queryCounts[event.Query]++
	for _, term := range event.Terms {
		a.termCounts[term]++
	}
	if event.TotalHits == 0 {
		a.zeroQueries[event.Query]++
	}
}

func (a *Aggregator) recordBuild(event BuildEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.builds++
	a.buildMsSum += event.DurationMs
	ev := event
	if event.Status == "error" {
		a.failed++
		a.lastFailure = &ev
		return
	}
	a.lastBuild = &ev
}

// Stats returns the current statistics with the ranked lists cut to ten.
func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(defaultTop)
}

// Snapshot returns the current statistics with each ranked list cut to top
// entries.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	if stats.TotalSearches > 0 {
		stats.AvgPNorm = a.pSum / float64(stats.TotalSearches)
	}
	stats.PNormUsage = topN(a.pCounts, top)
	stats.TopQueries = topN(a.queryCounts, top)
	stats.TopTerms = topN(a.termCounts, top)
	stats.ZeroResultQueries = topN(a.zeroQueries, top)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	stats.Builds = BuildStats{
		Total:      a.builds,
		Failed:     a.failed,
		LastBuild:  a.lastBuild,
		LastFailed: a.lastFailure,
	}
	if a.builds > 0 {
		stats.Builds.AvgMs = float64(a.buildMsSum) / float64(a.builds)
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by key so output is stable.
func topN(counts map[string]int64, n int) []QueryCount {
	n = max(n, 0)
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(x, y QueryCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Query, y.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
