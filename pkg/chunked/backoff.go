package chunked

import (
	"context"
	"math"
	"time"
)

// backoffDelay returns the wait before retry n (1-based): base * 2^n, capped
// at max when max is positive. Overflow saturates, so the sequence never
// decreases.
func backoffDelay(base, max time.Duration, n int) time.Duration {
	var d time.Duration
	if n >= 62 || base > time.Duration(math.MaxInt64>>uint(n)) {
		d = time.Duration(math.MaxInt64)
	} else {
		d = base << uint(n)
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
