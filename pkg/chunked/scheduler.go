package chunked

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// fetched is a finished fetch task reported to the coordinator. Exactly one
// of data and err is set.
type fetched struct {
	chunk Chunk
	data  []byte
	err   error
}

// scheduler runs the range fetch tasks for one download.
type scheduler struct {
	src     Source
	key     string
	chunks  []Chunk
	opts    *Options
	gate    *gate
	limiter *rate.Limiter
	obs     Observer
	log     *slog.Logger
}

func newScheduler(src Source, key string, chunks []Chunk, opts *Options, g *gate, obs Observer, log *slog.Logger) *scheduler {
	s := &scheduler{
		src:    src,
		key:    key,
		chunks: chunks,
		opts:   opts,
		gate:   g,
		obs:    obs,
		log:    log,
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s
}

// run fetches every chunk with at most opts.Concurrency requests in flight and
// reports each result on results. Chunks are handed to workers in ascending
// order. A worker waits for the gate after each task before taking the next
// chunk. run returns when all chunks are done, a chunk fails for good, or ctx
// is cancelled.
func (s *scheduler) run(ctx context.Context, results chan<- fetched) error {
	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan Chunk)

	// Feed chunks in order. The channel is unbuffered so dispatch order is
	// the order workers receive them.
	g.Go(func() error {
		defer close(jobs)
		for _, c := range s.chunks {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	workers := min(s.opts.Concurrency, len(s.chunks))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for c := range jobs {
				data, err := s.fetch(ctx, c)
				if err != nil && ctx.Err() != nil {
					// Abandoned because the download is ending.
					return ctx.Err()
				}

				select {
				case results <- fetched{chunk: c, data: data, err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
				if err != nil {
					return err
				}

				if err := s.gate.Wait(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// fetch reads one chunk, retrying with exponential backoff.
func (s *scheduler) fetch(ctx context.Context, c Chunk) ([]byte, error) {
	s.obs.ChunkStarted(c.Index)
	log := s.log.With("chunk", c.Index)
	log.Debug("fetching chunk", "start", c.Start, "end", c.End)

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(s.opts.Backoff, s.opts.MaxBackoff, attempt)
			s.obs.ChunkRetrying(c.Index, attempt, delay, lastErr)
			log.Warn("retrying chunk", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				s.obs.ChunkFailed(c.Index, err)
				return nil, err
			}
		}

		attempts++
		data, err := s.readRange(ctx, c)
		if err == nil {
			s.obs.ChunkFetched(c.Index, len(data))
			log.Debug("fetched chunk", "attempts", attempts, "size", len(data))
			return data, nil
		}
		if ctx.Err() != nil {
			s.obs.ChunkFailed(c.Index, ctx.Err())
			return nil, ctx.Err()
		}

		lastErr = err
		if IsPermanent(err) {
			break
		}
	}

	ferr := &FetchError{Chunk: c, Attempts: attempts, Err: lastErr}
	s.obs.ChunkFailed(c.Index, ferr)
	log.Error("chunk failed", "attempts", attempts, "error", lastErr)
	return nil, ferr
}

// errShortRead is returned when a source returns the wrong number of bytes.
var errShortRead = errors.New("chunked: range returned wrong length")

// readRange performs a single attempt.
func (s *scheduler) readRange(ctx context.Context, c Chunk) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data, err := s.src.ReadRange(ctx, s.key, c.Start, c.End)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != c.Len() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", errShortRead, len(data), c.Len())
	}
	return data, nil
}
