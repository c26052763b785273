package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/scopeworks/intake/internal/model"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorCategory
	}{
		{"nil", nil, ""},
		{"provider error passthrough", model.NewProviderError("x", model.ErrorRateLimit, errors.New("boom")), model.ErrorRateLimit},
		{"wrapped provider error", fmt.Errorf("call failed: %w", model.NewProviderError("x", model.ErrorServer, errors.New("boom"))), model.ErrorServer},
		{"deadline exceeded", context.DeadlineExceeded, model.ErrorTimeout},
		{"connection refused syscall", syscall.ECONNREFUSED, model.ErrorConnection},
		{"rate limit message", errors.New("429 Too Many Requests"), model.ErrorRateLimit},
		{"overloaded message", errors.New("overloaded_error: Overloaded"), model.ErrorRateLimit},
		{"timeout message", errors.New("request timed out"), model.ErrorTimeout},
		{"auth message", errors.New("401 invalid api key"), model.ErrorAuthentication},
		{"server message", errors.New("502 Bad Gateway"), model.ErrorServer},
		{"connection message", errors.New("dial tcp: connection refused"), model.ErrorConnection},
		{"unknown", errors.New("something odd happened"), model.ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.want {
				t.Errorf("Categorize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []model.ErrorCategory{
		model.ErrorRateLimit, model.ErrorTimeout, model.ErrorServer, model.ErrorConnection,
	}
	for _, cat := range retryable {
		err := model.NewProviderError("x", cat, errors.New("boom"))
		if !IsRetryable(err) {
			t.Errorf("expected %s to be retryable", cat)
		}
	}

	terminal := []model.ErrorCategory{model.ErrorAuthentication, model.ErrorUnknown}
	for _, cat := range terminal {
		err := model.NewProviderError("x", cat, errors.New("boom"))
		if IsRetryable(err) {
			t.Errorf("expected %s to be terminal", cat)
		}
	}

	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestAsProviderError(t *testing.T) {
	if AsProviderError("x", nil) != nil {
		t.Error("expected nil for nil error")
	}

	orig := model.NewProviderError("anthropic-vision", model.ErrorTimeout, errors.New("boom"))
	got := AsProviderError("other", fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Error("expected existing ProviderError to be preserved")
	}

	wrapped := AsProviderError("perplexity", errors.New("rate limit exceeded"))
	if wrapped.Provider != "perplexity" {
		t.Errorf("provider = %q", wrapped.Provider)
	}
	if wrapped.Category != model.ErrorRateLimit {
		t.Errorf("category = %q", wrapped.Category)
	}
}
