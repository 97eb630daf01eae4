package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetriesRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 4, time.Millisecond, func() error {
		calls++
		if calls < 4 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v, want nil after recovery", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Retry() = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for permanent errors)", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Retryable(errors.New("still down"))
	})
	if err == nil {
		t.Fatal("Retry() = nil, want error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Minute, func() error {
		return Retryable(errors.New("down"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() = %v, want context.Canceled", err)
	}
}

func TestRetryable_Nil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Retryable(errors.New("x"))) {
		t.Error("IsRetryable() = false for wrapped error")
	}
	if IsRetryable(errors.New("x")) {
		t.Error("IsRetryable() = true for plain error")
	}
}

func TestJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	lo := time.Duration(float64(base) * (1 - jitterFraction))
	hi := time.Duration(float64(base) * (1 + jitterFraction))
	for range 100 {
		d := jitter(base)
		if d < lo || d > hi {
			t.Fatalf("jitter(%v) = %v, want within [%v, %v]", base, d, lo, hi)
		}
	}
}
