package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/blobstream/pkg/chunked"
)

// Options configures the progress reporter.
type Options struct {
	// Source is the object being downloaded (for display).
	Source string

	// ChunkSize is the size of each chunk (for display).
	ChunkSize int64

	// Concurrency is the number of parallel fetches (for display).
	Concurrency int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information. It implements
// chunked.Observer and learns the object size from DownloadStarted.
type Reporter struct {
	opts Options

	totalSize     atomic.Int64
	totalChunks   atomic.Int32
	fetchedChunks atomic.Int32
	emittedBytes  atomic.Int64
	emittedChunks atomic.Int32
	inProgress    atomic.Int32
	retries       atomic.Int32

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	err        error
	started    bool
	stopped    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

var _ chunked.Observer = (*Reporter)(nil)

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[blobstream] Downloading: %s\n", r.opts.Source)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It waits until the
// final status is written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// DownloadStarted records the plan and prints the header line.
func (r *Reporter) DownloadStarted(totalSize int64, totalChunks int) {
	r.totalSize.Store(totalSize)
	r.totalChunks.Store(int32(totalChunks))

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.opts.Output, "[blobstream] Total size: %s | Chunks: %d x %s | Concurrency: %d\n",
		FormatBytes(totalSize),
		totalChunks,
		FormatBytes(r.opts.ChunkSize),
		r.opts.Concurrency,
	)
}

// ChunkStarted marks a chunk as in progress.
func (r *Reporter) ChunkStarted(int) {
	r.inProgress.Add(1)
}

// ChunkRetrying counts a retry.
func (r *Reporter) ChunkRetrying(int, int, time.Duration, error) {
	r.retries.Add(1)
}

// ChunkFetched marks a chunk as fetched and buffered.
func (r *Reporter) ChunkFetched(int, int) {
	r.fetchedChunks.Add(1)
	r.inProgress.Add(-1)
}

// ChunkFailed removes a chunk from in-progress.
func (r *Reporter) ChunkFailed(int, error) {
	r.inProgress.Add(-1)
}

// ChunkEmitted counts bytes handed to the reader.
func (r *Reporter) ChunkEmitted(_ int, size int) {
	r.emittedBytes.Add(int64(size))
	r.emittedChunks.Add(1)
}

// DownloadFinished records the outcome for the final status line.
func (r *Reporter) DownloadFinished(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	total := r.totalSize.Load()
	emitted := r.emittedBytes.Load()
	fetched := int(r.fetchedChunks.Load())
	emittedChunks := int(r.emittedChunks.Load())
	inProgress := int(r.inProgress.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(emitted-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = emitted

	var percent float64
	eta := "calculating..."
	if total > 0 {
		percent = float64(emitted) / float64(total) * 100
		if speed > 0 {
			remaining := float64(total - emitted)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	pending := max(int(r.totalChunks.Load())-fetched-inProgress, 0)

	fmt.Fprintf(r.opts.Output, "\r[blobstream] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		FormatBytes(emitted),
		FormatBytes(total),
		FormatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[blobstream] Chunks: %d delivered | %d buffered | %d in-flight | %d pending | %d retries    \033[A",
		emittedChunks,
		max(fetched-emittedChunks, 0),
		inProgress,
		pending,
		r.retries.Load(),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()

	emitted := r.emittedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(emitted) / max(duration.Seconds(), 0.001)

	if r.err != nil {
		fmt.Fprintf(r.opts.Output, "\r[blobstream] Failed after %s / %s: %v\n",
			FormatBytes(emitted),
			FormatBytes(r.totalSize.Load()),
			r.err,
		)
		return
	}

	fmt.Fprintf(r.opts.Output, "\r[blobstream] Progress: 100.0%% | %s / %s | Complete!    \n",
		FormatBytes(emitted),
		FormatBytes(r.totalSize.Load()),
	)
	fmt.Fprintf(r.opts.Output, "[blobstream] Total time: %s | Average speed: %s/s | Retries: %d\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
		r.retries.Load(),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
