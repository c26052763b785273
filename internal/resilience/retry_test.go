package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		JitterMax:   1 * time.Millisecond,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return AsProviderError("test", errors.New("503 server error"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(), func(_ context.Context) error {
		calls++
		return &model.ProviderError{
			Provider: "test",
			Category: model.ErrorRateLimit,
			Err:      errors.New("always rate limited"),
		}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonRetryableError_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(), func(_ context.Context) error {
		calls++
		return &model.ProviderError{
			Provider: "test",
			Category: model.ErrorAuthentication,
			Err:      errors.New("401 invalid api key"),
		}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for auth errors), got %d", calls)
	}
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
	}

	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return AsProviderError("test", errors.New("connection refused"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 2 {
		t.Errorf("expected retries to stop after cancel, got %d calls", calls)
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := fastRetryConfig()
	cfg.ShouldRetry = func(err error) bool { return false }

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("rate limit exceeded")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call with ShouldRetry=false, got %d", calls)
	}
}

func TestDo_OnAttempt_CalledForEveryFailure(t *testing.T) {
	var attempts []int
	cfg := fastRetryConfig()
	cfg.OnAttempt = func(attempt int, err error) {
		attempts = append(attempts, attempt)
		if err == nil {
			t.Error("OnAttempt called without an error")
		}
	}

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return AsProviderError("test", errors.New("timeout"))
	})

	// Every failed attempt is recorded, including the terminal one.
	if len(attempts) != 3 {
		t.Fatalf("expected 3 OnAttempt calls, got %d", len(attempts))
	}
	for i, a := range attempts {
		if a != i+1 {
			t.Errorf("attempt %d reported as %d", i+1, a)
		}
	}
}

func TestDo_OnAttempt_NotCalledOnSuccess(t *testing.T) {
	var notified int
	cfg := fastRetryConfig()
	cfg.OnAttempt = func(int, error) { notified++ }

	var calls int
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return AsProviderError("test", errors.New("502 bad gateway"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 2 {
		t.Errorf("expected 2 OnAttempt calls for 2 failures, got %d", notified)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetryConfig(), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", AsProviderError("test", errors.New("timeout"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected %q, got %q", "ok", val)
	}
}

func TestComputeBackoff_ExponentialAndCapped(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  300 * time.Millisecond,
	}

	if d := computeBackoff(0, cfg); d != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", d)
	}
	if d := computeBackoff(1, cfg); d != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %v", d)
	}
	// 100ms * 2^2 = 400ms, capped at 300ms.
	if d := computeBackoff(2, cfg); d != 300*time.Millisecond {
		t.Errorf("attempt 2: expected cap at 300ms, got %v", d)
	}
}

func TestComputeBackoff_JitterWithinBound(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  time.Second,
		JitterMax: 5 * time.Millisecond,
	}

	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		if d < 10*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("backoff %v outside [10ms, 15ms]", d)
		}
	}
}
