// Package resilience holds retry helpers for calls to external systems such
// as PostgreSQL, Redis and Kafka.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig describes an exponential backoff. Zero fields take the
// defaults of three attempts starting at 100ms, doubling up to 10s with
// 10% jitter.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable decides whether an error is worth another attempt. Nil
	// retries everything except context cancellation.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	if c.Retryable == nil {
		c.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	return c
}

// delay is the pause after the given 1-based attempt, capped at MaxDelay.
func (c RetryConfig) delay(attempt int) time.Duration {
	backoff := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	backoff += backoff * c.JitterFraction * (2*rand.Float64() - 1)
	return time.Duration(min(max(backoff, float64(c.InitialDelay)/2), float64(c.MaxDelay)))
}

// Retry calls fn until it succeeds, the attempts run out, Retryable rejects
// the error, or ctx is done. A rejected error is returned unwrapped.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}

		wait := cfg.delay(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "next_delay", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
	}
}
