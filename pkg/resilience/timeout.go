package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadline is wrapped into the error returned when WithTimeout gives up
// on fn. It also wraps context.DeadlineExceeded.
var ErrDeadline = fmt.Errorf("deadline exceeded: %w", context.DeadlineExceeded)

// WithTimeout runs fn with a derived context cancelled after timeout. A
// non-positive timeout runs fn directly. fn must observe ctx; its result is
// discarded once the deadline passes.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%s: %w (limit: %v)", name, ErrDeadline, timeout)
		}
		return r.val, r.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", name, ErrDeadline, timeout)
	}
}
