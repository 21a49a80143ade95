// Package llm provides AI backend client utilities and error classification.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jmylchreest/hone/internal/errs"
)

// Error categories for AI backend operations.
var (
	// ErrRateLimited indicates the backend rejected the call due to rate limiting.
	ErrRateLimited = errors.New("backend rate limited")

	// ErrUnavailable indicates the backend is temporarily unreachable or overloaded.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrInvalidCredentials indicates the configured API key/token was rejected.
	ErrInvalidCredentials = errors.New("invalid backend credentials")

	// ErrUnsupportedFeature indicates the model doesn't support a requested capability
	// (structured output, tool use, vision).
	ErrUnsupportedFeature = errors.New("backend feature unsupported")

	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("backend call timed out")
)

// BackendError represents a classified error from an AI backend call.
type BackendError struct {
	Err        error
	StatusCode int
	Backend    string // native, openai_compatible, mock
	Model      string
	Category   string
	Retryable  bool
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown backend error"
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsHoneError converts a classified backend error into the repository-wide
// taxonomy so callers above the AI layer never need to know about backend
// status codes.
func (e *BackendError) AsHoneError() *errs.HoneError {
	if errors.Is(e.Err, context.Canceled) {
		return errs.Wrap(errs.KindCancelled, "ai backend call cancelled", e)
	}
	return errs.Wrap(errs.KindBackend, "ai backend call failed: "+e.Category, e)
}

// classifyByErrorMessage inspects a lowercased error string for known patterns.
func classifyByErrorMessage(errStr string) (error, string, bool) {
	switch {
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "ratelimit") || strings.Contains(errStr, "429"):
		return ErrRateLimited, "rate_limit", true
	case strings.Contains(errStr, "overloaded") || strings.Contains(errStr, "capacity") || strings.Contains(errStr, "503"):
		return ErrUnavailable, "unavailable", true
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key") || strings.Contains(errStr, "401"):
		return ErrInvalidCredentials, "invalid_credentials", false
	case strings.Contains(errStr, "does not support") || strings.Contains(errStr, "not supported"):
		return ErrUnsupportedFeature, "unsupported_feature", false
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return ErrTimeout, "timeout", true
	default:
		return nil, "unknown", false
	}
}

// ClassifyError analyzes an error returned by an AI backend HTTP call and
// produces a BackendError carrying a retry/fallback decision for the model
// router's health tracking.
func ClassifyError(err error, backend, model string, statusCode int) *BackendError {
	if err == nil {
		return nil
	}

	be := &BackendError{Err: err, StatusCode: statusCode, Backend: backend, Model: model}

	switch statusCode {
	case http.StatusTooManyRequests:
		be.Err, be.Category, be.Retryable = ErrRateLimited, "rate_limit", true
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		be.Err, be.Category, be.Retryable = ErrUnavailable, "unavailable", true
	case http.StatusUnauthorized, http.StatusForbidden:
		be.Err, be.Category, be.Retryable = ErrInvalidCredentials, "invalid_credentials", false
	default:
		classified, category, retryable := classifyByErrorMessage(strings.ToLower(err.Error()))
		if classified != nil {
			be.Err, be.Category, be.Retryable = classified, category, retryable
		} else {
			be.Category = "unknown"
			be.Retryable = false
		}
	}

	return be
}

// IsRetryable reports whether a classified backend error should be retried
// against the same model, as opposed to triggering router failover.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}
