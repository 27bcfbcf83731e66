package chunked

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied when an option is unset or not positive.
const (
	DefaultChunkSize   = 5 * 1024 * 1024 // 5 MiB
	DefaultConcurrency = 5
	DefaultMaxRetries  = 5
	DefaultBackoff     = time.Second
)

// Options configures a Stream.
type Options struct {
	ChunkSize   int64
	Concurrency int
	MaxRetries  int           // Retries after the first attempt
	Backoff     time.Duration // Delay before retry n is Backoff * 2^n
	MaxBackoff  time.Duration // Cap on the retry delay (0 = uncapped)
	RateLimit   rate.Limit    // Range requests per second (0 = unlimited)
	RateBurst   int
	Logger      *slog.Logger
	Observers   []Observer
}

// Option is a functional option for configuring a Stream.
type Option func(*Options)

// WithChunkSize sets the number of bytes fetched per range request.
func WithChunkSize(size int64) Option {
	return func(o *Options) {
		o.ChunkSize = size
	}
}

// WithConcurrency sets the maximum number of range requests in flight.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithMaxRetries sets how many times a chunk is retried after its first
// attempt fails. Zero or a negative n falls back to DefaultMaxRetries, so
// retries cannot be switched off here; wrap an error with Permanent to fail
// its chunk without retrying.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithBackoff sets the base retry delay and an optional cap. The delay before
// retry n is base * 2^n, limited to max when max is positive.
func WithBackoff(base, max time.Duration) Option {
	return func(o *Options) {
		o.Backoff = base
		o.MaxBackoff = max
	}
}

// WithRateLimit limits range requests (retries included) to rps per second
// with the given burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.RateLimit = rate.Limit(rps)
		o.RateBurst = burst
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithObserver adds an observer notified of download and chunk events.
// It can be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observers = append(o.Observers, obs)
		}
	}
}

func buildOptions(options []Option) Options {
	var opts Options
	for _, opt := range options {
		opt(&opts)
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MaxBackoff < 0 {
		opts.MaxBackoff = 0
	}
	if opts.RateLimit > 0 && opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return opts
}
