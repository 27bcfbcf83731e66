package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ligustah/blobstream/internal/progress"
	"github.com/ligustah/blobstream/pkg/chunked"
)

// Options configures a download.
type Options struct {
	// Stream holds the chunked options (chunk size, concurrency, retries).
	Stream []chunked.Option

	// Progress is an optional progress reporter. It is registered as an
	// observer and started and stopped around the download.
	Progress *progress.Reporter

	// Observers are extra observers, e.g. a metrics collector.
	Observers []chunked.Observer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FileInfo contains metadata about the remote object.
type FileInfo struct {
	Key  string
	Size int64
}

// ErrSizeMismatch is returned when the number of bytes written differs from
// the object's size.
var ErrSizeMismatch = errors.New("downloader: byte count does not match object size")

// Stat resolves the object's size without fetching any data.
func Stat(ctx context.Context, src chunked.Source, key string) (*FileInfo, error) {
	size, err := src.Size(ctx, key)
	if err != nil {
		return nil, &chunked.MetadataError{Key: key, Err: err}
	}
	return &FileInfo{Key: key, Size: size}, nil
}

// Download streams key from src into dst in order and returns the number of
// bytes written.
func Download(ctx context.Context, src chunked.Source, key string, dst io.Writer, opts Options) (int64, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	streamOpts := append([]chunked.Option{chunked.WithLogger(log)}, opts.Stream...)
	for _, o := range opts.Observers {
		streamOpts = append(streamOpts, chunked.WithObserver(o))
	}
	if opts.Progress != nil {
		streamOpts = append(streamOpts, chunked.WithObserver(opts.Progress))
		opts.Progress.Start()
		defer opts.Progress.Stop()
	}

	stream := chunked.Open(ctx, src, key, streamOpts...)
	defer stream.Close()

	n, err := io.Copy(dst, stream)
	if err != nil {
		return n, err
	}

	size, err := stream.Size(ctx)
	if err != nil {
		return n, err
	}
	if n != size {
		return n, fmt.Errorf("%w: wrote %d, want %d", ErrSizeMismatch, n, size)
	}

	log.Debug("download written", "key", key, "bytes", n, "download_id", stream.ID())
	return n, nil
}

// DownloadToFile downloads key into path. Data goes to a temporary file in
// the same directory that is renamed into place only after a complete,
// synced write, so path never holds a partial object.
func DownloadToFile(ctx context.Context, src chunked.Source, key, path string, opts Options) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".partial-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := Download(ctx, src, key, tmp, opts)
	if err != nil {
		cleanup()
		return n, err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("rename to %s: %w", path, err)
	}

	return n, nil
}
