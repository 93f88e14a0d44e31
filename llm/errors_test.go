// ABOUTME: Tests for HTTP status classification and retryability of the error hierarchy.

package llm

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCodeClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		check     func(error) bool
	}{
		{"401 auth", 401, false, func(err error) bool {
			var e *AuthenticationError
			return errors.As(err, &e)
		}},
		{"403 auth", 403, false, func(err error) bool {
			var e *AuthenticationError
			return errors.As(err, &e)
		}},
		{"429 rate limit", 429, true, func(err error) bool {
			var e *RateLimitError
			return errors.As(err, &e)
		}},
		{"500 server", 500, true, func(err error) bool {
			var e *ServerError
			return errors.As(err, &e)
		}},
		{"503 server", 503, true, func(err error) bool {
			var e *ServerError
			return errors.As(err, &e)
		}},
		{"400 invalid request", 400, false, func(err error) bool {
			var e *InvalidRequestError
			return errors.As(err, &e)
		}},
		{"422 invalid request", 422, false, func(err error) bool {
			var e *InvalidRequestError
			return errors.As(err, &e)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrorFromStatusCode(tt.status, "boom", "anthropic", "", nil, nil)
			if !tt.check(err) {
				t.Errorf("status %d classified as %T", tt.status, err)
			}
			if Retryable(err) != tt.retryable {
				t.Errorf("Retryable(%d) = %v, want %v", tt.status, Retryable(err), tt.retryable)
			}
		})
	}
}

func TestProviderErrorPreservesDetails(t *testing.T) {
	after := 2.5
	err := ErrorFromStatusCode(429, "slow down", "openai", "rate_limit_exceeded", []byte(`{"error":1}`), &after)

	var rate *RateLimitError
	if !errors.As(err, &rate) {
		t.Fatalf("error = %T", err)
	}
	if rate.Provider != "openai" || rate.StatusCode != 429 || rate.ErrorCode != "rate_limit_exceeded" {
		t.Errorf("details lost: %+v", rate.ProviderError)
	}
	if rate.RetryAfter == nil || *rate.RetryAfter != 2.5 {
		t.Errorf("RetryAfter = %v", rate.RetryAfter)
	}
}

func TestNetworkErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !Retryable(err) {
		t.Error("network errors must be retryable")
	}
}

func TestRetryableForPlainErrors(t *testing.T) {
	if Retryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	if Retryable(&ConfigurationError{SDKError: SDKError{Message: "bad config"}}) {
		t.Error("configuration errors are not retryable")
	}
}
