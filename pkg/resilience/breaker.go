package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker refuses a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls failure thresholds and recovery timing.
type BreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange, if set, is called with the breaker lock held; it must
	// not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker guards an optional dependency such as the Redis result cache.
// After FailureThreshold consecutive failures it opens and fails fast until
// ResetTimeout elapses, then lets HalfOpenMaxRequests probes through.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	now      func() time.Time
	logger   *slog.Logger
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	defaults := defaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.ResetTimeout - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, b.name, wait)
		}
		b.transition(StateHalfOpen)
		b.probes = 1
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (half-open probe limit reached)", ErrCircuitOpen, b.name)
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		return
	}
	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// transition changes state. Caller holds mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.probes = 0
	b.logger.Warn("breaker state change", "from", from.String(), "to", to.String(), "consecutive_failures", b.failures)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
