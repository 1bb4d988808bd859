// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
)

// Chain applies middleware so that the first one listed runs outermost.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Metrics records request count and latency per route, plus the number of
// requests in flight.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			route := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// routes are the paths served by the searcher and analytics binaries.
var routes = map[string]bool{
	"/api/v1/search":            true,
	"/api/v1/index/stats":       true,
	"/api/v1/index/reload":      true,
	"/api/v1/cache/stats":       true,
	"/api/v1/cache/invalidate":  true,
	"/api/v1/analytics":         true,
	"/api/v1/analytics/history": true,
	"/health/live":              true,
	"/health/ready":             true,
}

// normalizePath keeps label cardinality bounded by collapsing unknown
// paths to "other".
func normalizePath(path string) string {
	if routes[path] {
		return path
	}
	return "other"
}
