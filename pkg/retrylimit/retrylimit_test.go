package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(0), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetry(context.Background(), fastConfig(4), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if calls != 4 {
		t.Fatalf("fn called %d times, want 4", calls)
	}
}

func TestFatalErrorStopsImmediately(t *testing.T) {
	calls := 0
	inner := errors.New("bad credentials")
	err := WithRetry(context.Background(), fastConfig(0), func() error {
		calls++
		return &FatalError{Err: inner}
	})
	if !errors.Is(err, inner) {
		t.Fatalf("err = %v, want the unwrapped fatal cause", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times after fatal error, want 1", calls)
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2.0}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := WithRetry(ctx, cfg, func() error {
		calls++
		return errors.New("keep trying")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1 before the long backoff", calls)
	}
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_ = WithRetry(context.Background(), cfg, func() error {
		return errors.New("nope")
	})
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Fatalf("OnRetry attempts = %v, want [1 2 3]", attempts)
	}
}
