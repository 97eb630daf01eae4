// Package httputil provides retry helpers shared by all outbound HTTP clients.
//
// Transient failures (429 and 5xx responses, timeouts, connection errors) are
// wrapped with [RetryableError] by the caller; [Retry] then re-attempts the
// operation with jittered exponential backoff. Errors that are not wrapped
// are returned immediately.
package httputil

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Backoff parameters for registry calls: 500ms base delay doubling each
// attempt, up to 5 attempts, with ±25% jitter on every delay.
const (
	DefaultAttempts  = 5
	DefaultBaseDelay = 500 * time.Millisecond
	jitterFraction   = 0.25
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 429 or 5xx responses) with this
// type so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError. Returns nil if err is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Retry executes fn up to attempts times with jittered exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt and is
// perturbed by ±25% jitter. Returns the last error if all attempts fail,
// or ctx.Err() if cancelled while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter(delay)):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with the registry
// defaults: 5 attempts starting at 500ms (doubling each retry).
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, DefaultAttempts, DefaultBaseDelay, fn)
}

// IsRetryable reports whether err is wrapped with RetryableError.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

func jitter(d time.Duration) time.Duration {
	// Uniform in [1-f, 1+f].
	factor := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(d) * factor)
}
