package chunked

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Stream presents a remote object as an ordered io.ReadCloser backed by
// concurrent range requests.
//
// Read and WriteTo must not be called concurrently with each other. Close may
// be called from any goroutine.
type Stream struct {
	id   string
	src  Source
	key  string
	opts Options
	obs  Observer
	log  *slog.Logger

	cancel context.CancelFunc
	state  atomic.Int32

	// Coordinator channels. results holds at most two values: the reader
	// never has more than one pull outstanding, so at most one Data can be
	// unread when the terminal Done or Error is sent.
	pulls   chan struct{}
	results chan Result
	closed  chan struct{}
	done    chan struct{}

	sizeOnce  sync.Once
	sizeReady chan struct{}
	size      int64
	sizeErr   error

	closeOnce sync.Once
	finishErr error

	// Reader side.
	buf []byte
	err error
}

// Open starts streaming key from src and returns the stream. The size lookup
// begins immediately; chunk fetching follows once the size is known. No data
// is handed over until the first Read.
//
// The caller must Close the stream. Cancelling ctx ends the stream with the
// context's error.
func Open(ctx context.Context, src Source, key string, options ...Option) *Stream {
	opts := buildOptions(options)
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		id:        id,
		src:       src,
		key:       key,
		opts:      opts,
		obs:       observers(opts.Observers),
		log:       opts.Logger.With("download_id", id, "key", key),
		cancel:    cancel,
		pulls:     make(chan struct{}),
		results:   make(chan Result, 2),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
		sizeReady: make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

// ID returns the unique id of this download, used in log records.
func (s *Stream) ID() string {
	return s.id
}

// State returns the current download state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Size blocks until the object's size is resolved and returns it. It returns
// the metadata error if the lookup failed.
func (s *Stream) Size(ctx context.Context) (int64, error) {
	select {
	case <-s.sizeReady:
		return s.size, s.sizeErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Err returns the error that ended the download, or nil if it completed or is
// still running.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.finishErr
	default:
		return nil
	}
}

// Read reads up to len(p) bytes of the object in order. It returns io.EOF
// after the last byte, or the error that ended the download.
func (s *Stream) Read(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if len(s.buf) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if err := s.next(); err != nil {
			s.err = err
			return 0, err
		}
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// WriteTo writes the rest of the object to w one chunk at a time. It
// implements io.WriterTo so io.Copy avoids an intermediate buffer.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if s.isClosed() {
			return total, ErrClosed
		}

		if len(s.buf) > 0 {
			n, err := w.Write(s.buf)
			total += int64(n)
			s.buf = s.buf[n:]
			if err != nil {
				return total, err
			}
			continue
		}

		if s.err == nil {
			s.err = s.next()
		}
		if s.err == io.EOF {
			return total, nil
		}
		if s.err != nil {
			return total, s.err
		}
	}
}

// Close cancels the download, aborting in-flight fetches and dropping
// buffered chunks, and waits for all goroutines to exit. Closing a finished
// stream is a no-op.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
	<-s.done
	return nil
}

// next asks the coordinator for one chunk and waits for it. Only called when
// s.buf is empty.
func (s *Stream) next() error {
	// A terminal result may already be waiting.
	select {
	case r := <-s.results:
		return s.accept(r)
	default:
	}

	select {
	case s.pulls <- struct{}{}:
	case r := <-s.results:
		return s.accept(r)
	case <-s.closed:
		return ErrClosed
	}

	select {
	case r := <-s.results:
		return s.accept(r)
	case <-s.closed:
		return ErrClosed
	}
}

func (s *Stream) accept(r Result) error {
	switch r.Kind {
	case ResultData:
		s.buf = r.Data
		return nil
	case ResultDone:
		return io.EOF
	default:
		return r.Err
	}
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// setState moves to next unless the current state is terminal.
func (s *Stream) setState(next State) {
	for {
		cur := s.state.Load()
		if State(cur).Terminal() {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (s *Stream) resolved(size int64, err error) {
	s.sizeOnce.Do(func() {
		s.size, s.sizeErr = size, err
		close(s.sizeReady)
	})
}

// run is the coordinator. It resolves the size, starts the scheduler and
// then serialises every fetch result and reader pull through one loop, so
// the reassembly buffer and the gate are only touched from here.
func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()
	defer s.resolved(0, ErrClosed)

	s.setState(StateResolving)
	s.log.Debug("resolving object size")

	size, err := s.src.Size(ctx, s.key)
	if err == nil && size < 0 {
		err = errors.New("source returned negative size")
	}
	if err != nil {
		if s.isClosed() {
			s.finish(StateCancelled, ErrClosed)
			return
		}
		merr := &MetadataError{Key: s.key, Err: err}
		s.resolved(0, merr)
		s.fail(merr)
		return
	}
	s.resolved(size, nil)

	chunks, err := Plan(size, s.opts.ChunkSize)
	if err != nil {
		s.fail(err)
		return
	}

	s.setState(StateDownloading)
	s.obs.DownloadStarted(size, len(chunks))
	s.log.Info("download started",
		"size", size,
		"chunks", len(chunks),
		"chunk_size", s.opts.ChunkSize,
		"concurrency", s.opts.Concurrency,
	)

	g := newGate()
	r := newReassembler(len(chunks), g, s.results, s.obs)

	fetchCtx, stopFetch := context.WithCancel(ctx)
	defer stopFetch()

	fetchedCh := make(chan fetched)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if len(chunks) == 0 {
			return
		}
		sched := newScheduler(s.src, s.key, chunks, &s.opts, g, s.obs, s.log)
		if err := sched.run(fetchCtx, fetchedCh); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("scheduler stopped", "error", err)
		}
	}()

	// stop aborts in-flight fetches, waits for the workers and drops
	// whatever is still buffered.
	stop := func() {
		stopFetch()
		<-schedDone
		r.reset()
	}

	// An empty object completes without a pull.
	if r.drain() {
		stop()
		s.finish(StateComplete, nil)
		return
	}

	for {
		select {
		case f := <-fetchedCh:
			if f.err != nil {
				stop()
				s.fail(f.err)
				return
			}
			if r.insert(f.chunk.Index, f.data) {
				stop()
				s.finish(StateComplete, nil)
				return
			}
			s.log.Debug("chunk buffered", "chunk", f.chunk.Index, "buffered", r.buffered())

		case <-s.pulls:
			if r.pull() {
				stop()
				s.finish(StateComplete, nil)
				return
			}

		case <-ctx.Done():
			stop()
			if s.isClosed() {
				s.finish(StateCancelled, ErrClosed)
				return
			}
			s.fail(ctx.Err())
			return
		}
	}
}

// fail ends the download in error and hands err to the reader.
func (s *Stream) fail(err error) {
	// The state is visible before the reader can see the error.
	s.setState(StateError)
	s.results <- Result{Kind: ResultError, Err: err}
	s.finish(StateError, err)
}

func (s *Stream) finish(state State, err error) {
	s.finishErr = err
	s.setState(state)
	s.obs.DownloadFinished(err)

	switch state {
	case StateComplete:
		s.log.Info("download complete")
	case StateCancelled:
		s.log.Info("download cancelled")
	default:
		s.log.Error("download failed", "error", err)
	}
}
