// ABOUTME: Error hierarchy for the model-invocation surface.
// ABOUTME: Structured provider, network, and configuration errors with retryability.

package llm

import (
	"encoding/json"
	"fmt"
)

// SDKError is the base error type for this package. All other error types
// embed it directly or transitively.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// IsRetryable is false for the base type; subtypes override it.
func (e *SDKError) IsRetryable() bool {
	return false
}

// ProviderError is an error returned by a provider's API, with the HTTP
// status, provider error code, and raw body preserved.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	RetryAfter *float64
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string { return e.SDKError.Error() }
func (e *ProviderError) Unwrap() error { return e.SDKError.Unwrap() }

// IsRetryable reports the flag set when the error was classified.
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// As lets errors.As reach the embedded SDKError.
func (e *ProviderError) As(target any) bool {
	if t, ok := target.(**SDKError); ok {
		*t = &e.SDKError
		return true
	}
	return false
}

// AuthenticationError is a 401 response. Not retryable.
type AuthenticationError struct {
	ProviderError
}

func (e *AuthenticationError) IsRetryable() bool { return false }

// InvalidRequestError is a 4xx response other than auth or rate limiting. Not retryable.
type InvalidRequestError struct {
	ProviderError
}

func (e *InvalidRequestError) IsRetryable() bool { return false }

// RateLimitError is a 429 response. Retryable, honoring RetryAfter when present.
type RateLimitError struct {
	ProviderError
}

func (e *RateLimitError) IsRetryable() bool { return true }

// ServerError is a 5xx response. Retryable.
type ServerError struct {
	ProviderError
}

func (e *ServerError) IsRetryable() bool { return true }

// NetworkError is a transport-level failure before any HTTP status was
// received. Retryable.
type NetworkError struct {
	SDKError
}

func (e *NetworkError) IsRetryable() bool { return true }

// NewNetworkError wraps a transport failure.
func NewNetworkError(cause error) *NetworkError {
	return &NetworkError{SDKError: SDKError{Message: "network error", Cause: cause}}
}

// ConfigurationError reports missing or inconsistent client configuration.
// Not retryable.
type ConfigurationError struct {
	SDKError
}

// ErrorFromStatusCode classifies a provider HTTP error into the typed hierarchy.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, raw json.RawMessage, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: fmt.Sprintf("%s: %s", provider, message)},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Raw:        raw,
		RetryAfter: retryAfter,
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		return &AuthenticationError{ProviderError: pe}
	case statusCode == 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case statusCode >= 500:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	case statusCode >= 400:
		return &InvalidRequestError{ProviderError: pe}
	default:
		return &pe
	}
}

// Retryable reports whether err advertises retryability.
func Retryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	return false
}
