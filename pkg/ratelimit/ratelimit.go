// Package ratelimit provides an in-memory token-bucket limiter keyed by an
// arbitrary string, typically the client address.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter refills each key at limit tokens per window, continuously.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// New creates a limiter allowing limit requests per window for each key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &entry{tokens: float64(l.limit - 1), lastCheck: now}
		return l.limit > 0
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now
	rate := float64(l.limit) / l.window.Seconds()
	e.tokens = min(e.tokens+elapsed.Seconds()*rate, float64(l.limit))

	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// RetryAfter is the time until key regains a token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || e.tokens >= 1 || l.limit <= 0 {
		return 0
	}
	perToken := l.window / time.Duration(l.limit)
	return time.Duration((1 - e.tokens) * float64(perToken))
}

// Reset clears the state of key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run evicts keys idle for two windows until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, e := range l.entries {
		if e.lastCheck.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
