// Package retrylimit provides retry with exponential backoff for building
// resilient clients. Works with any error types.
//
// Example usage:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	err := retrylimit.WithRetry(ctx, retrylimit.DefaultRetryConfig(), func() error {
//	    return dial()
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// FatalError wraps errors that should stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int           // maximum number of attempts (0 = unlimited)
	InitialDelay time.Duration // initial delay between retries
	MaxDelay     time.Duration // maximum delay between retries
	Multiplier   float64       // delay multiplier for exponential backoff
	Jitter       bool          // add random jitter to prevent thundering herd
	OnRetry      func(attempt int, err error)
}

// DefaultRetryConfig returns a sensible default configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  0,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// WithRetry executes fn until it succeeds, applying exponential backoff
// between attempts. Stops when:
//   - fn returns nil (success)
//   - fn returns a *FatalError
//   - the context is cancelled or expires
//   - the maximum attempt count is reached (if configured)
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var fatal *FatalError
		if errors.As(lastErr, &fatal) {
			return fatal.Err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		wait := delay
		if cfg.Jitter {
			wait += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
