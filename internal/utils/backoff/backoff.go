// Package backoff computes retry delays for calls to the account ledger.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Exponential returns base * 2^attempt, capped at maxDelay when maxDelay > 0.
// Attempts start at 0; negative attempts are treated as 0.
func Exponential(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
		if delay > time.Duration(1<<62) {
			break
		}
		delay *= 2
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// FullJitter picks a delay uniformly from [0, delay).
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(delay)))
}

// Delay is the full-jitter exponential delay before retry number attempt.
func Delay(base, maxDelay time.Duration, attempt int) time.Duration {
	return FullJitter(Exponential(base, maxDelay, attempt))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
