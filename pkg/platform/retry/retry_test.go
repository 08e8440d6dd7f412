package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestPolicyDo(t *testing.T) {
	t.Run("returns nil on first success without waiting", func(t *testing.T) {
		var waits []time.Duration
		calls := 0
		p := Policy{MaxAttempts: 3, Backoff: Linear(time.Second), Sleep: recordingSleep(&waits)}

		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, waits)
	})

	t.Run("exhausts attempts with linear backoff and surfaces last error", func(t *testing.T) {
		var waits []time.Duration
		calls := 0
		p := Policy{MaxAttempts: 3, Backoff: Linear(time.Second), Sleep: recordingSleep(&waits)}

		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return errors.New("attempt failed")
		})

		require.EqualError(t, err, "attempt failed")
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var waits []time.Duration
		calls := 0
		p := Policy{MaxAttempts: 3, Backoff: Linear(time.Second), Sleep: recordingSleep(&waits)}

		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Len(t, waits, 2)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		permanent := errors.New("bad input")
		calls := 0
		p := Policy{
			MaxAttempts: 5,
			Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}

		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return permanent
		})

		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		calls := 0
		err := Policy{}.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("on retry hook sees each failed attempt", func(t *testing.T) {
		var seen []int
		p := Policy{
			MaxAttempts: 3,
			Backoff:     Constant(time.Millisecond),
			OnRetry:     func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) },
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}

		_ = p.Do(context.Background(), func(context.Context) error { return errors.New("x") })
		assert.Equal(t, []int{1, 2}, seen)
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		p := Policy{MaxAttempts: 3, Backoff: Constant(time.Hour)}

		err := p.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("down")
		})

		assert.EqualError(t, err, "down")
		assert.Equal(t, 1, calls)
	})
}

func TestSleep(t *testing.T) {
	t.Run("zero duration returns immediately", func(t *testing.T) {
		assert.NoError(t, Sleep(context.Background(), 0))
	})

	t.Run("cancelled context returns context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
	})
}
