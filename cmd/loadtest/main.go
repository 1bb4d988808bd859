// Command loadtest drives the search API with a mix of boolean queries and
// random p values and reports latency percentiles. With -docs it instead
// builds an index in-process and compares a sequential scan of the raw
// documents against indexed search, term by term.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/scan"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	PMin, PMax  float64
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var defaultQueries = []string{
	"python",
	"java AND spring",
	"python OR ruby",
	"(python OR java) AND NOT windows",
	"c++ AND templates",
	"c# OR .net",
	"sort AND (list OR array)",
	"NOT deprecated",
	"git AND (merge OR rebase)",
	"node.js AND NOT express",
	"sql AND (join OR index)",
	"docker OR kubernetes",
	"regex AND unicode",
	"(memory OR leak) AND c",
	"async AND await AND javascript",
}

var defaultTerms = []string{"python", "java", "sorting", "windows", "unicode", "c++", "regex", "database"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	pMin := flag.Float64("pmin", 1, "smallest p value sent")
	pMax := flag.Float64("pmax", 10, "largest p value sent")
	docs := flag.String("docs", "", "compare sequential scan with indexed search over this documents directory instead of load testing")
	terms := flag.String("terms", strings.Join(defaultTerms, ","), "comma-separated terms for -docs mode")
	flag.Parse()

	if *docs != "" {
		if err := compare(context.Background(), *docs, strings.Split(*terms, ",")); err != nil {
			fmt.Fprintf(os.Stderr, "comparison failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *pMin <= 0 || *pMax < *pMin {
		fmt.Fprintln(os.Stderr, "need 0 < pmin <= pmax")
		os.Exit(2)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     defaultQueries,
		PMin:        *pMin,
		PMax:        *pMax,
	}

	fmt.Println("=== Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Printf("p range:     %.1f-%.1f\n", cfg.PMin, cfg.PMax)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// randomP draws p uniformly from [min, max] rounded to one decimal, so
// repeated values exercise the query cache.
func randomP(r *rand.Rand, lo, hi float64) float64 {
	return math.Round((lo+r.Float64()*(hi-lo))*10) / 10
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := range cfg.Concurrency {
		wg.Go(func() {
			r := rand.New(rand.NewPCG(uint64(w), uint64(time.Now().UnixNano())))
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				query := cfg.Queries[r.IntN(len(cfg.Queries))]
				p := randomP(r, cfg.PMin, cfg.PMax)
				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&p=%s&limit=10",
					cfg.BaseURL, url.QueryEscape(query), strconv.FormatFloat(p, 'f', 1, 64))

				start := time.Now()
				resp, err := client.Do(mustNewRequest(ctx, searchURL))
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, nil)
			}
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func mustNewRequest(ctx context.Context, rawURL string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

// compare builds an index over dir, then times a sequential scan and an
// indexed search for every term.
func compare(ctx context.Context, dir string, terms []string) error {
	norm := tokenizer.MustNew()
	src := source.NewDir(dir, ".txt")

	idx, stats, err := indexer.NewBuilder(norm, indexer.WithWorkers(4)).Build(ctx, src)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d documents, %d terms in %s\n\n", stats.Documents, stats.Terms, stats.Duration)
	fmt.Printf("%-12s %10s %12s %10s %12s %8s\n", "term", "scan hits", "scan", "idx hits", "indexed", "speedup")

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		seq, err := scan.Sequential(ctx, src, term, norm)
		if err != nil {
			return err
		}
		start := time.Now()
		ranked, err := executor.Search(ctx, term, 2.0, idx, norm)
		if err != nil {
			return err
		}
		indexed := time.Since(start)

		speedup := math.Inf(1)
		if indexed > 0 {
			speedup = float64(seq.Duration) / float64(indexed)
		}
		fmt.Printf("%-12s %10d %12s %10d %12s %7.1fx\n",
			term, len(seq.DocIDs), seq.Duration, len(ranked), indexed, speedup)
	}
	return nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errCount := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errCount)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errCount)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		avgFloat := float64(avg)
		for _, l := range latencies {
			diff := float64(l) - avgFloat
			sumSquared += diff * diff
		}
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
