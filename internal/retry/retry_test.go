// ABOUTME: Tests for the bounded retry policy
// ABOUTME: Covers attempt counting, non-retryable errors, pacing, and cancellation

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var calls []int
	attempts, err := Policy{MaxAttempts: 3}.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls = append(calls, attempt)
		if attempt < 3 {
			return errTransient
		}
		return nil
	}, isTransient)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestDo_NeverExceedsMaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := Policy{MaxAttempts: 3}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errTransient
	}, isTransient)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_DefaultAttempts(t *testing.T) {
	calls := 0
	_, _ = Policy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errTransient
	}, isTransient)

	assert.Equal(t, DefaultMaxAttempts, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	attempts, err := Policy{MaxAttempts: 5}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return permanent
	}, isTransient)

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_NilRetryableNeverRetries(t *testing.T) {
	calls := 0
	_, err := Policy{MaxAttempts: 5}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errTransient
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PacesAttempts(t *testing.T) {
	delay := 30 * time.Millisecond
	var stamps []time.Time
	_, _ = Policy{MaxAttempts: 3, Delay: delay}.Do(context.Background(), func(context.Context, int) error {
		stamps = append(stamps, time.Now())
		return errTransient
	}, isTransient)

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), delay-5*time.Millisecond)
	}
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := Policy{MaxAttempts: 5, Delay: time.Hour}.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errTransient
	}, isTransient)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestJitter_Bounds(t *testing.T) {
	p := Policy{Delay: 100 * time.Millisecond, Jitter: 0.5}
	for range 100 {
		j := p.jitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 50*time.Millisecond)
	}

	assert.Zero(t, Policy{Delay: time.Second}.jitter())
	assert.Zero(t, Policy{Jitter: 1}.jitter())
}
