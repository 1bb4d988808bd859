// Package health backs the /health/live and /health/ready endpoints. Each
// binary registers a check per dependency (the loaded index, Redis,
// PostgreSQL) and readiness reports the worst of them.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// severity orders statuses so the worst one wins.
func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

const (
	checkTimeout = 2 * time.Second
	readyTimeout = 5 * time.Second
)

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds a named check, replacing any check with that name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// PingCheck turns a ping function into a Check. A failed ping is degraded
// for an optional dependency and down otherwise.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		err := ping(ctx)
		switch {
		case err == nil:
			return ComponentHealth{Status: StatusUp}
		case optional:
			return ComponentHealth{Status: StatusDegraded, Message: err.Error()}
		default:
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
	}
}

// Run executes every check in parallel, each bounded by its own timeout.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]ComponentHealth, len(checks))
	)
	for name, check := range checks {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			res := check(cctx)
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	report := Report{Status: StatusUp, Components: results, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for name, res := range results {
		if res.Status != StatusUp {
			c.logger.Warn("component unhealthy", "name", name, "status", res.Status, "message", res.Message)
		}
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}
	return report
}

// LiveHandler always answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 when any required dependency is down. Degraded
// optional dependencies still report ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
