// ABOUTME: Bounded retry policy with optional uniform delay and jitter
// ABOUTME: Pacing between attempts goes through a token-bucket limiter

package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxAttempts is used when a Policy leaves MaxAttempts unset.
const DefaultMaxAttempts = 3

// Policy bounds how many times an operation runs and how attempts are spaced.
// MaxAttempts counts total attempts, including the first.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Jitter adds up to Jitter*Delay of random extra wait before a retry.
	Jitter float64
}

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns an error retryable rejects, the
// attempt budget is spent, or ctx is done. It returns the number of attempts
// made and the last error.
func (p Policy) Do(ctx context.Context, fn Func, retryable func(error) bool) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	limiter := p.limiter()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if werr := limiter.Wait(ctx); werr != nil {
			if err == nil {
				err = werr
			}
			return attempt - 1, err
		}
		if attempt > 1 {
			if werr := sleep(ctx, p.jitter()); werr != nil {
				return attempt - 1, err
			}
		}

		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if retryable == nil || !retryable(err) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
	}
	return maxAttempts, err
}

// limiter allows the first attempt immediately and one more per Delay.
func (p Policy) limiter() *rate.Limiter {
	if p.Delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(p.Delay), 1)
}

func (p Policy) jitter() time.Duration {
	if p.Delay <= 0 || p.Jitter <= 0 {
		return 0
	}
	span := time.Duration(float64(p.Delay) * p.Jitter)
	if span <= 0 {
		return 0
	}
	return rand.N(span)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
