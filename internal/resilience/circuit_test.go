package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

func transientErr() error {
	return model.NewProviderError("x", model.ErrorServer, errors.New("boom"))
}

func failThrough(b *Breaker, err error) error {
	_, got := Guard(context.Background(), b, func(_ context.Context) (struct{}, error) {
		return struct{}{}, err
	})
	return got
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := failThrough(b, transientErr()); errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("breaker opened early at failure %d", i+1)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// Calls are now rejected without invoking fn.
	var invoked bool
	_, err := Guard(context.Background(), b, func(_ context.Context) (struct{}, error) {
		invoked = true
		return struct{}{}, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if invoked {
		t.Error("fn must not run while the circuit is open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_ = failThrough(b, transientErr())
	_ = failThrough(b, transientErr())
	_ = failThrough(b, nil)
	_ = failThrough(b, transientErr())
	_ = failThrough(b, transientErr())

	if b.State() != BreakerClosed {
		t.Errorf("expected closed after interleaved success, got %s", b.State())
	}
}

func TestBreaker_NonTransientErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	authErr := model.NewProviderError("x", model.ErrorAuthentication, errors.New("401"))
	for i := 0; i < 5; i++ {
		_ = failThrough(b, authErr)
	}
	if b.State() != BreakerClosed {
		t.Errorf("auth errors tripped the breaker: %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }

	_ = failThrough(b, transientErr())
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// Before the reset timeout the probe is rejected.
	if err := failThrough(b, nil); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected rejection before reset timeout, got %v", err)
	}

	// After the timeout a single probe goes through; success closes the circuit.
	now = now.Add(31 * time.Second)
	if err := failThrough(b, nil); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }

	_ = failThrough(b, transientErr())
	now = now.Add(31 * time.Second)
	_ = failThrough(b, transientErr())

	if b.State() != BreakerOpen {
		t.Errorf("expected reopen after failed probe, got %s", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	_ = failThrough(b, transientErr())
	b.Reset()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after Reset, got %s", b.State())
	}
}
