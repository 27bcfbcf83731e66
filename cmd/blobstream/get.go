package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ligustah/blobstream/internal/config"
	"github.com/ligustah/blobstream/internal/downloader"
	"github.com/ligustah/blobstream/internal/progress"
	"github.com/ligustah/blobstream/pkg/chunked"
)

type getFlags struct {
	sourceFlags
	output      string
	chunkSize   string
	concurrency int
	retries     int
	backoff     time.Duration
	maxBackoff  time.Duration
	rateLimit   float64
	rateBurst   int
	progress    bool
	metricsAddr string
}

func newGetCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var f getFlags

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Download an object and write it in order",
		Long: `Download an object using concurrent range requests.

The object is written to --output, or to stdout when --output is empty or "-".
A file output is written to a temporary file first and renamed into place
once the whole object has been received.`,
		Example: `  blobstream get --source s3://my-bucket?region=us-east-1 --object backups/db.tar.gz -o db.tar.gz
  blobstream get --source https://example.com/big.iso --chunk-size 16MiB --concurrency 8 --progress -o big.iso
  blobstream get --source gs://my-bucket --object logs/2024 --prefix-match | tar -xz`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGet(cmd, g, &f, stdout, stderr)
		},
	}

	f.sourceFlags.register(cmd)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", `output file ("-" or empty for stdout)`)
	cmd.Flags().StringVar(&f.chunkSize, "chunk-size", "", "chunk size, e.g. 5MiB (default 5MiB)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, fmt.Sprintf("parallel chunk fetches (default %d)", chunked.DefaultConcurrency))
	cmd.Flags().IntVar(&f.retries, "retries", 0, fmt.Sprintf("retries per chunk after the first attempt (default %d)", chunked.DefaultMaxRetries))
	cmd.Flags().DurationVar(&f.backoff, "backoff", 0, fmt.Sprintf("delay before the first retry, doubled for each further retry (default %s)", chunked.DefaultBackoff))
	cmd.Flags().DurationVar(&f.maxBackoff, "max-backoff", 0, "upper bound on the retry delay (default unbounded)")
	cmd.Flags().Float64Var(&f.rateLimit, "rate-limit", 0, "maximum chunk requests per second (default unlimited)")
	cmd.Flags().IntVar(&f.rateBurst, "rate-burst", 0, "request burst allowed by --rate-limit")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "show progress on stderr")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func runGet(cmd *cobra.Command, g *globalFlags, f *getFlags, stdout, stderr io.Writer) error {
	ctx := cmd.Context()

	chunkSize, err := parseSize("chunk-size", f.chunkSize)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(g, config.Config{
		Source:      f.source,
		Object:      f.object,
		PrefixMatch: f.prefixMatch,
		ChunkSize:   chunkSize,
		Concurrency: f.concurrency,
		Output:      f.output,
		Progress:    f.progress,
		MetricsAddr: f.metricsAddr,
		RateLimit:   f.rateLimit,
		RateBurst:   f.rateBurst,
		Retry: config.RetryConfig{
			Attempts:   f.retries,
			Backoff:    f.backoff,
			MaxBackoff: f.maxBackoff,
		},
	})
	if err != nil {
		return err
	}

	log := newLogger(cfg, stderr)

	src, key, closeSource, err := openSource(ctx, cfg, &f.sourceFlags)
	if err != nil {
		return err
	}
	defer closeSource()

	opts := downloader.Options{
		Stream: cfg.StreamOptions(),
		Logger: log,
	}

	metricsObserver, stopMetrics, err := startMetrics(cfg, log)
	if err != nil {
		return err
	}
	defer stopMetrics()
	if metricsObserver != nil {
		opts.Observers = append(opts.Observers, metricsObserver)
	}

	if cfg.Progress {
		opts.Progress = progress.NewReporter(progress.Options{
			Source:      key,
			ChunkSize:   cfg.ChunkSize,
			Concurrency: cfg.Concurrency,
			Output:      stderr,
		})
	}

	log.Info("starting download",
		"source", cfg.Source,
		"key", key,
		"chunk_size", cfg.ChunkSize,
		"concurrency", cfg.Concurrency,
	)
	start := time.Now()

	var n int64
	if cfg.Output == "" || cfg.Output == "-" {
		n, err = downloader.Download(ctx, src, key, stdout, opts)
	} else {
		n, err = downloader.DownloadToFile(ctx, src, key, cfg.Output, opts)
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}

	log.Info("download complete",
		"key", key,
		"bytes", n,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
