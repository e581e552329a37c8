// Package retry provides a bounded, context-aware retry loop and sleep helper.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffFunc returns the delay before attempt number next (2-based: the
// first retry is attempt 2).
type BackoffFunc func(next int) time.Duration

// Constant waits the same delay before every retry.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Exponential doubles base for every retry: base, 2*base, 4*base, ...
func Exponential(base time.Duration) BackoffFunc {
	return func(next int) time.Duration {
		return base * time.Duration(1<<(next-2))
	}
}

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int

	// Backoff computes the pause between attempts. Nil means no pause.
	Backoff BackoffFunc

	// Retryable decides whether an error deserves another attempt. Nil retries every error.
	Retryable func(error) bool

	// OnRetry is called before each pause with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)

	// Sleep replaces the pause, mainly for tests. Nil uses [Sleep].
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := max(p.MaxAttempts, 1)

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}

		lastErr = err

		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt + 1)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		sleepErr := sleep(ctx, wait)
		if sleepErr != nil {
			return zero, sleepErr
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
