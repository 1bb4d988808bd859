// Package e2e contains end-to-end tests that run against deployed services:
// the searcher (with its index, Redis cache and Kafka reload consumer) and
// the analytics service.
//
// Prerequisites:
//   - cmd/indexer has built a snapshot from E2E_DOCUMENTS_DIR
//   - cmd/searcher is serving that snapshot
//   - optionally Redis, Kafka and cmd/analytics
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	SearcherURL  string
	AnalyticsURL string
	DocumentsDir string
	PollSeconds  int
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		SearcherURL:  envOrDefault("E2E_SEARCHER_URL", "http://localhost:8080"),
		AnalyticsURL: envOrDefault("E2E_ANALYTICS_URL", "http://localhost:8082"),
		DocumentsDir: os.Getenv("E2E_DOCUMENTS_DIR"),
		PollSeconds:  envOrDefaultInt("E2E_POLL_SECONDS", 30),
	}
}

type searchResponse struct {
	Query        string  `json:"query"`
	Postfix      string  `json:"postfix"`
	PNorm        float64 `json:"p"`
	TotalHits    int     `json:"total_hits"`
	IndexVersion string  `json:"index_version"`
	Results      []struct {
		DocID string  `json:"doc_id"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func search(t *testing.T, client *http.Client, base, query string, p float64) searchResponse {
	t.Helper()
	u := base + "/api/v1/search?q=" + url.QueryEscape(query) + "&p=" + strconv.FormatFloat(p, 'g', -1, 64)
	resp, err := client.Get(u)
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	return out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestPlatformHealth verifies all services respond to health checks.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig()

	services := []struct {
		name string
		url  string
	}{
		{"searcher /health/live", cfg.SearcherURL + "/health/live"},
		{"searcher /health/ready", cfg.SearcherURL + "/health/ready"},
		{"analytics /health/live", cfg.AnalyticsURL + "/health/live"},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestSearchContract checks the response shape and the request validation
// of the live searcher.
func TestSearchContract(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	res := search(t, client, cfg.SearcherURL, "python AND NOT java", 2.5)
	if res.Postfix != "python java NOT AND" {
		t.Errorf("postfix = %q", res.Postfix)
	}
	if res.PNorm != 2.5 {
		t.Errorf("p = %v", res.PNorm)
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("results not sorted by score: %v", res.Results)
			break
		}
	}

	for _, q := range []string{"q=python&p=0", "q=python&p=abc", "q=python&limit=0", "p=2"} {
		resp, err := client.Get(cfg.SearcherURL + "/api/v1/search?" + q)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

// TestIndexAndSearch adds a document to the indexer's source directory and
// waits for the rebuilt snapshot to reach the searcher. It needs the indexer
// running with -watch over E2E_DOCUMENTS_DIR.
func TestIndexAndSearch(t *testing.T) {
	cfg := loadE2EConfig()
	if cfg.DocumentsDir == "" {
		t.Skip("E2E_DOCUMENTS_DIR not set")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	before := search(t, client, cfg.SearcherURL, "python", 2)

	uniqueWord := fmt.Sprintf("e2etest%d", time.Now().UnixNano())
	name := filepath.Join(cfg.DocumentsDir, uniqueWord+".txt")
	text := "An end-to-end test question about python mentioning " + uniqueWord
	if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
		t.Fatalf("writing document: %v", err)
	}
	t.Cleanup(func() { os.Remove(name) })

	t.Log("waiting for document to be indexed...")
	for attempt := range cfg.PollSeconds {
		time.Sleep(time.Second)
		res := search(t, client, cfg.SearcherURL, uniqueWord, 2)
		if res.TotalHits > 0 {
			if res.Results[0].DocID != uniqueWord+".txt" {
				t.Errorf("top result = %s", res.Results[0].DocID)
			}
			if res.IndexVersion == before.IndexVersion {
				t.Error("index version unchanged after rebuild")
			}
			t.Logf("document found after %d seconds", attempt+1)
			return
		}
	}
	t.Fatalf("document not found in search within %ds", cfg.PollSeconds)
}

// TestSearchAnalytics verifies that searches show up in the searcher's local
// statistics and, when Kafka is wired, in the analytics service.
func TestSearchAnalytics(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	search(t, client, cfg.SearcherURL, "analytics OR test", 3)

	for _, base := range []string{cfg.SearcherURL, cfg.AnalyticsURL} {
		resp, err := client.Get(base + "/api/v1/analytics")
		if err != nil {
			t.Logf("%s unavailable: %v", base, err)
			continue
		}
		var stats map[string]any
		json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()

		t.Logf("%s: total_searches=%v, cache_hits=%v, avg_p=%v",
			base, stats["total_searches"], stats["cache_hits"], stats["avg_p"])
		if base == cfg.SearcherURL {
			if total, _ := stats["total_searches"].(float64); total < 1 {
				t.Error("expected at least 1 search recorded by the searcher")
			}
		}
	}
}

// TestSearchCache verifies that a repeated query is served from the cache
// and that invalidation empties it.
func TestSearchCache(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	stats := func() map[string]any {
		resp, err := client.Get(cfg.SearcherURL + "/api/v1/cache/stats")
		if err != nil {
			t.Skipf("search service unavailable: %v", err)
		}
		defer resp.Body.Close()
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		return out
	}
	if s := stats(); s["status"] == "disabled" {
		t.Skip("cache is disabled")
	}
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		if _, ok := stats()[field]; !ok {
			t.Errorf("missing expected field: %s", field)
		}
	}

	query := fmt.Sprintf("cachecheck%d OR python", time.Now().UnixNano())
	search(t, client, cfg.SearcherURL, query, 2)
	hits, _ := stats()["hits"].(float64)
	search(t, client, cfg.SearcherURL, query, 2)
	if after, _ := stats()["hits"].(float64); after <= hits {
		t.Errorf("repeated query was not a cache hit (hits %v -> %v)", hits, after)
	}

	resp, err := client.Post(cfg.SearcherURL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("invalidate: expected 200, got %d", resp.StatusCode)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
