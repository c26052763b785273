package model

import (
	"fmt"
)

// ErrorCategory classifies a provider failure for retry and reporting.
type ErrorCategory string

const (
	ErrorRateLimit      ErrorCategory = "rate_limit"
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorServer         ErrorCategory = "server_error"
	ErrorConnection     ErrorCategory = "connection"
	ErrorUnknown        ErrorCategory = "unknown"
)

// ValidationError aborts a run immediately and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NewValidationError creates a ValidationError with the given reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// ProviderError wraps a categorized failure from an external analyzer.
type ProviderError struct {
	Provider string
	Category ErrorCategory
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Category, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a categorized provider failure.
func NewProviderError(provider string, category ErrorCategory, err error) *ProviderError {
	return &ProviderError{Provider: provider, Category: category, Err: err}
}

// ParseError indicates an analyzer response that did not contain usable JSON
// even after substring and regex recovery.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %v (response: %.80q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError wraps err with a snippet of the offending response text.
func NewParseError(snippet string, err error) *ParseError {
	return &ParseError{Snippet: snippet, Err: err}
}

// PipelineError is raised when both the primary and the fallback pass fail.
// It is the only error class visible to callers of the whole pipeline.
type PipelineError struct {
	ProcessingID string
	Primary      error
	Fallback     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s: primary pass: %v; fallback pass: %v",
		e.ProcessingID, e.Primary, e.Fallback)
}

func (e *PipelineError) Unwrap() error {
	return e.Fallback
}

// NewPipelineError combines the primary and fallback pass failures.
func NewPipelineError(processingID string, primary, fallback error) *PipelineError {
	return &PipelineError{ProcessingID: processingID, Primary: primary, Fallback: fallback}
}
