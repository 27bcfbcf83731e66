package chunked

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateStartsClosed(t *testing.T) {
	g := newGate()
	if g.IsOpen() {
		t.Fatal("expected new gate to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to block until deadline, got %v", err)
	}
}

func TestGateOpenReleasesAllWaiters(t *testing.T) {
	g := newGate()

	const waiters = 5
	released := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			released <- g.Wait(context.Background())
		}()
	}

	time.Sleep(10 * time.Millisecond)
	g.Open()

	for i := 0; i < waiters; i++ {
		select {
		case err := <-released:
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter %d not released", i)
		}
	}
}

func TestGateCloseBlocksAgain(t *testing.T) {
	g := newGate()
	g.Open()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on open gate: %v", err)
	}

	g.Close()
	if g.IsOpen() {
		t.Fatal("expected gate to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected Wait on closed gate to block")
	}

	// Repeated calls are no-ops.
	g.Close()
	g.Open()
	g.Open()
	if !g.IsOpen() {
		t.Fatal("expected gate to be open")
	}
}
