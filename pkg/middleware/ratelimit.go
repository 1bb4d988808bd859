package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/ratelimit"
)

// RateLimit rejects requests with 429 once the client address has used up
// its tokens. Health endpoints are never limited.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			key := clientAddr(r)
			if !limiter.Allow(key) {
				wait := math.Ceil(limiter.RetryAfter(key).Seconds())
				slog.Debug("rate limited", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(max(int(wait), 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the first X-Forwarded-For hop over the peer address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
