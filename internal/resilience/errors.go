// Package resilience provides retry, circuit breaker, and error
// classification for external analyzer calls.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/scopeworks/intake/internal/model"
)

// Categorize maps an error from an analyzer call onto the provider error
// taxonomy. It checks the error chain first, then falls back to message
// heuristics for errors wrapped by HTTP clients and SDKs.
func Categorize(err error) model.ErrorCategory {
	if err == nil {
		return ""
	}

	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return model.ErrorConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "429", "overloaded"):
		return model.ErrorRateLimit
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return model.ErrorTimeout
	case containsAny(msg, "unauthorized", "authentication", "invalid api key", "invalid x-api-key", "401", "403"):
		return model.ErrorAuthentication
	case containsAny(msg, "internal server error", "bad gateway", "service unavailable", "500", "502", "503", "529"):
		return model.ErrorServer
	case containsAny(msg, "connection refused", "connection reset", "broken pipe", "no such host",
		"temporary failure in name resolution", "tls handshake"):
		return model.ErrorConnection
	default:
		return model.ErrorUnknown
	}
}

// IsRetryable reports whether an analyzer error is worth retrying. Rate
// limits, timeouts, server errors, and connection failures are transient;
// authentication failures and anything non-categorizable are not retried.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case model.ErrorRateLimit, model.ErrorTimeout, model.ErrorServer, model.ErrorConnection:
		return true
	default:
		return false
	}
}

// AsProviderError wraps err as a categorized ProviderError for the given
// provider, preserving an existing category if one is already present.
func AsProviderError(provider string, err error) *model.ProviderError {
	if err == nil {
		return nil
	}
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return model.NewProviderError(provider, Categorize(err), err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
