package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of a provider circuit breaker.
type BreakerState int

const (
	// BreakerClosed is the normal operating state.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls immediately so stages fail fast into their
	// heuristic fallbacks instead of burning the retry budget per image.
	BreakerOpen
	// BreakerHalfOpen allows a single probe call to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected because the provider's
// circuit is open.
var ErrBreakerOpen = eris.New("provider circuit is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a probe call
	// is allowed. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count toward the threshold. If nil,
	// only retryable (transient) errors trip the breaker — a bad request
	// should not take the provider offline for other images.
	ShouldTrip func(err error) bool
}

// DefaultBreakerConfig returns the breaker configuration used per provider.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is a circuit breaker guarding one analyzer provider.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	nowFunc     func() time.Time // injectable for tests
}

// NewBreaker creates a circuit breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: BreakerClosed, nowFunc: time.Now}
}

// Guard runs fn through the breaker, returning ErrBreakerOpen without
// invoking fn when the circuit is open.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.nowFunc().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	shouldTrip := b.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = IsRetryable
	}

	if err == nil || !shouldTrip(err) {
		b.failures = 0
		b.state = BreakerClosed
		return
	}

	b.failures++
	b.lastFailure = b.nowFunc()
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
	}
}
