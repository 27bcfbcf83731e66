package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ligustah/blobstream/internal/config"
	bshttp "github.com/ligustah/blobstream/internal/http"
	"github.com/ligustah/blobstream/internal/metrics"
	"github.com/ligustah/blobstream/internal/progress"
	"github.com/ligustah/blobstream/pkg/chunked"
)

// sourceFlags are the flags naming the object to read.
type sourceFlags struct {
	source      string
	object      string
	prefixMatch bool
	headers     []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", "", "bucket URL (s3://, gs://, mem://) or http(s) URL")
	cmd.Flags().StringVar(&f.object, "object", "", "object key in the bucket, or path appended to an http source")
	cmd.Flags().BoolVar(&f.prefixMatch, "prefix-match", false, "resolve the object as the first key with this prefix")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, `extra request header for http sources, "Name: value" (repeatable)`)
}

// httpHeader parses the --header values.
func (f *sourceFlags) httpHeader() (http.Header, error) {
	h := http.Header{}
	for _, kv := range f.headers {
		name, value, ok := strings.Cut(kv, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &usageError{err: fmt.Errorf("--header %q: want \"Name: value\"", kv)}
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// loadConfig builds the configuration from, in increasing precedence, the
// defaults, the config file, the .env file, the environment and the flags.
func loadConfig(g *globalFlags, override config.Config) (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(g.configPath)
		if err != nil {
			return cfg, &usageError{err: err}
		}
	}

	if g.envFile != "" {
		if err := config.LoadDotEnv(g.envFile); err != nil {
			return cfg, &usageError{err: err}
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, &usageError{err: err}
	}

	override.LogLevel = g.logLevel
	cfg = cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return cfg, &usageError{err: err}
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSource returns the source and key for cfg, and a func releasing the
// source.
func openSource(ctx context.Context, cfg config.Config, f *sourceFlags) (chunked.Source, string, func() error, error) {
	if cfg.IsHTTP() {
		header, err := f.httpHeader()
		if err != nil {
			return nil, "", nil, err
		}
		opts := bshttp.DefaultOptions()
		opts.Header = header

		key := cfg.Source
		if cfg.Object != "" {
			key = strings.TrimRight(cfg.Source, "/") + "/" + strings.TrimLeft(cfg.Object, "/")
		}
		return bshttp.NewSource(opts), key, func() error { return nil }, nil
	}

	bs, err := chunked.OpenBucketSource(ctx, cfg.Source, chunked.WithPrefixMatch(cfg.PrefixMatch))
	if err != nil {
		return nil, "", nil, &usageError{err: err}
	}
	return bs, cfg.Object, bs.Close, nil
}

// startMetrics serves /metrics on cfg.MetricsAddr and returns an observer
// for the download plus a shutdown func. Without an address it returns a
// nil observer.
func startMetrics(cfg config.Config, log *slog.Logger) (chunked.Observer, func(), error) {
	if cfg.MetricsAddr == "" {
		return nil, func() {}, nil
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", cfg.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return collector.Observer(), shutdown, nil
}

// parseSize parses a size flag, returning 0 for an empty value.
func parseSize(name, v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := progress.ParseBytes(v)
	if err != nil {
		return 0, &usageError{err: fmt.Errorf("--%s: %w", name, err)}
	}
	return n, nil
}
