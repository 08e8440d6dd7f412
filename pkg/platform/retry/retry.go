// Package retry applies a bounded retry policy around a single-call operation.
package retry

import (
	"context"
	"time"
)

// BackoffFunc returns the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed.
type BackoffFunc func(attempt int) time.Duration

// Linear waits attempt × step: 1s, 2s, 3s... for step = time.Second.
func Linear(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Constant waits the same duration after every failed attempt.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Policy describes how many times to try and how long to wait in between.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable decides whether a failed attempt should be retried. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, wait time.Duration, err error)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, the policy gives up, or ctx is done.
// The last error from fn is returned when attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !p.shouldRetry(lastErr) {
			return lastErr
		}
		wait := p.wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, lastErr)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p Policy) shouldRetry(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
