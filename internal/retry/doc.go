// Package retry implements a small bounded-retry policy.
//
// A Policy runs an attempt function at most MaxAttempts times. The caller
// decides which errors are worth another attempt; everything else is
// returned after the first failure. Attempts are spaced by a
// golang.org/x/time/rate limiter so a zero Delay retries immediately and a
// positive Delay spaces attempts uniformly, with optional random jitter.
package retry
