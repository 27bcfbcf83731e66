package chunked

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		base    time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{time.Second, 0, 1, 2 * time.Second},
		{time.Second, 0, 2, 4 * time.Second},
		{time.Second, 0, 5, 32 * time.Second},
		{100 * time.Millisecond, 0, 3, 800 * time.Millisecond},
		{time.Second, 10 * time.Second, 3, 8 * time.Second},
		{time.Second, 10 * time.Second, 4, 10 * time.Second},
		{time.Second, 10 * time.Second, 40, 10 * time.Second},
	}

	for _, tt := range tests {
		got := backoffDelay(tt.base, tt.max, tt.attempt)
		if got != tt.want {
			t.Errorf("backoffDelay(%v, %v, %d) = %v, want %v", tt.base, tt.max, tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayNonDecreasing(t *testing.T) {
	for _, max := range []time.Duration{0, time.Minute} {
		prev := time.Duration(0)
		for n := 1; n < 100; n++ {
			d := backoffDelay(time.Second, max, n)
			if d < prev {
				t.Fatalf("max=%v: delay for attempt %d (%v) is below attempt %d (%v)", max, n, d, n-1, prev)
			}
			prev = d
		}
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep did not return promptly on cancellation")
	}
}
