package chunked

import (
	"bytes"
	"testing"
)

func TestReassemblerHoldsUntilPull(t *testing.T) {
	g := newGate()
	out := make(chan Result, 8)
	r := newReassembler(3, g, out, observers(nil))

	if r.insert(0, []byte("a")) {
		t.Fatal("unexpected completion")
	}
	if len(out) != 0 {
		t.Fatalf("emitted %d results before any pull", len(out))
	}
	if g.IsOpen() {
		t.Fatal("gate opened without a pull")
	}

	if r.pull() {
		t.Fatal("unexpected completion")
	}
	res := <-out
	if res.Kind != ResultData || !bytes.Equal(res.Data, []byte("a")) {
		t.Fatalf("got %+v, want data %q", res, "a")
	}
	if g.IsOpen() {
		t.Fatal("gate should close once the pull is served")
	}
}

func TestReassemblerOutOfOrder(t *testing.T) {
	g := newGate()
	out := make(chan Result, 8)
	r := newReassembler(3, g, out, observers(nil))

	r.insert(2, []byte("c"))
	r.insert(1, []byte("b"))

	// A pull with chunk 0 missing keeps the gate open.
	r.pull()
	if len(out) != 0 {
		t.Fatalf("emitted %d results with the cursor chunk missing", len(out))
	}
	if !g.IsOpen() {
		t.Fatal("gate should stay open while the pull is unserved")
	}
	if r.buffered() != 2 {
		t.Fatalf("buffered = %d, want 2", r.buffered())
	}

	r.insert(0, []byte("a"))
	if res := <-out; string(res.Data) != "a" {
		t.Fatalf("got %q, want %q", res.Data, "a")
	}

	// One chunk per pull.
	if len(out) != 0 {
		t.Fatal("emitted more chunks than pulled")
	}

	r.pull()
	if res := <-out; string(res.Data) != "b" {
		t.Fatalf("got %q, want %q", res.Data, "b")
	}

	if !r.pull() {
		t.Fatal("expected completion after the last chunk")
	}
	if res := <-out; string(res.Data) != "c" {
		t.Fatalf("got %q, want %q", res.Data, "c")
	}
	if res := <-out; res.Kind != ResultDone {
		t.Fatalf("got %+v, want done", res)
	}
	if r.buffered() != 0 {
		t.Fatalf("buffered = %d after completion", r.buffered())
	}
}

func TestReassemblerEmpty(t *testing.T) {
	out := make(chan Result, 1)
	r := newReassembler(0, newGate(), out, observers(nil))

	if !r.drain() {
		t.Fatal("expected an empty download to complete immediately")
	}
	if res := <-out; res.Kind != ResultDone {
		t.Fatalf("got %+v, want done", res)
	}
}

func TestReassemblerReset(t *testing.T) {
	out := make(chan Result, 1)
	r := newReassembler(4, newGate(), out, observers(nil))
	r.insert(1, []byte("b"))
	r.insert(3, []byte("d"))

	r.reset()
	if r.buffered() != 0 {
		t.Fatalf("buffered = %d after reset", r.buffered())
	}
}

func TestReassemblerServedPullKeepsGateShut(t *testing.T) {
	g := newGate()
	out := make(chan Result, 8)
	r := newReassembler(4, g, out, observers(nil))

	r.insert(0, []byte("a"))
	r.insert(1, []byte("b"))

	waiting := g.ch
	r.pull()
	r.pull()
	if len(out) != 2 {
		t.Fatalf("emitted %d results, want 2", len(out))
	}

	select {
	case <-waiting:
		t.Fatal("pulls served from the buffer released waiting workers")
	default:
	}

	// Nothing buffered for this pull, so workers must run.
	r.pull()
	if !g.IsOpen() {
		t.Fatal("gate should open for an unserved pull")
	}
	select {
	case <-waiting:
	default:
		t.Fatal("waiting workers were not released")
	}
}
