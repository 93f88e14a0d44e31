// ABOUTME: Retry with exponential backoff and jitter for provider calls.
// ABOUTME: Honors per-error retryability and provider-supplied retry-after hints.

package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures retry behavior around provider calls.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the initial call.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// BackoffMultiplier controls exponential growth of the delay.
	BackoffMultiplier float64

	// Jitter randomizes the delay to avoid thundering herds.
	Jitter bool

	// OnRetry, when set, is invoked before each retry with the error, the
	// zero-indexed attempt, and the delay about to be applied.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns 2 retries, 1s base, 60s cap, 2x backoff, jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// CalculateDelay computes the backoff delay for a zero-indexed attempt.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}
	delay := time.Duration(delayFloat)

	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay)) + 1)
	}
	return delay
}

// Retry invokes op until it succeeds, returns a non-retryable error, or the
// retry budget is exhausted. A RateLimitError's retry-after hint overrides
// the computed backoff when it is longer.
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) (*Response, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == policy.MaxRetries {
			return nil, err
		}

		delay := policy.CalculateDelay(attempt)
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter != nil {
			hinted := time.Duration(*rateErr.RetryAfter * float64(time.Second))
			if hinted > delay {
				delay = hinted
			}
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// RetryMiddleware wraps the chain with the given retry policy.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		return Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
			return next(ctx, req)
		})
	}
}
