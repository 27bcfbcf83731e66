package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ligustah/blobstream/pkg/chunked"
)

const namespace = "blobstream"

// Collector holds the Prometheus metrics for chunked downloads. Use
// Observer to get a chunked.Observer for each download.
type Collector struct {
	downloads     *prometheus.CounterVec // By result (complete/error/cancelled)
	chunksFetched prometheus.Counter
	chunksFailed  *prometheus.CounterVec // By reason (error/canceled)
	chunksRetried prometheus.Counter
	bytesFetched  prometheus.Counter
	bytesEmitted  prometheus.Counter
	inFlight      prometheus.Gauge
	pending       prometheus.Gauge
	fetchDuration prometheus.Histogram
	objectSize    prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "total",
			Help:      "Total number of finished downloads",
		}, []string{"result"}),

		chunksFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "fetched_total",
			Help:      "Total number of chunks fetched",
		}),

		chunksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "failed_total",
			Help:      "Total number of chunk fetches that ended without data",
		}, []string{"reason"}),

		chunksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "retries_total",
			Help:      "Total number of chunk fetch retries",
		}),

		bytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "fetched_bytes_total",
			Help:      "Total bytes received from the object store",
		}),

		bytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "emitted_bytes_total",
			Help:      "Total bytes handed to readers",
		}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "in_flight",
			Help:      "Chunk fetches currently running, including backoff waits",
		}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "pending_chunks",
			Help:      "Fetched chunks waiting in reassembly buffers",
		}),

		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "fetch_duration_seconds",
			Help:      "Time from chunk start to fetched, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}),

		objectSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "object_size_bytes",
			Help:      "Size of downloaded objects",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 14), // 1KiB to 64TiB
		}),
	}

	for _, m := range []prometheus.Collector{
		c.downloads,
		c.chunksFetched,
		c.chunksFailed,
		c.chunksRetried,
		c.bytesFetched,
		c.bytesEmitted,
		c.inFlight,
		c.pending,
		c.fetchDuration,
		c.objectSize,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Observer returns a chunked.Observer that records one download.
func (c *Collector) Observer() chunked.Observer {
	return &downloadObserver{c: c, started: make(map[int]time.Time)}
}

// downloadObserver keeps the per-download state needed to settle the gauges
// when the download ends.
type downloadObserver struct {
	c *Collector

	mu       sync.Mutex
	started  map[int]time.Time
	buffered int
}

func (o *downloadObserver) DownloadStarted(totalSize int64, _ int) {
	o.c.objectSize.Observe(float64(totalSize))
}

func (o *downloadObserver) ChunkStarted(index int) {
	o.mu.Lock()
	o.started[index] = time.Now()
	o.mu.Unlock()
	o.c.inFlight.Inc()
}

func (o *downloadObserver) ChunkRetrying(int, int, time.Duration, error) {
	o.c.chunksRetried.Inc()
}

func (o *downloadObserver) ChunkFetched(index int, size int) {
	o.mu.Lock()
	start, ok := o.started[index]
	delete(o.started, index)
	o.buffered++
	o.mu.Unlock()

	if ok {
		o.c.fetchDuration.Observe(time.Since(start).Seconds())
	}
	o.c.inFlight.Dec()
	o.c.chunksFetched.Inc()
	o.c.bytesFetched.Add(float64(size))
	o.c.pending.Inc()
}

func (o *downloadObserver) ChunkFailed(index int, err error) {
	o.mu.Lock()
	delete(o.started, index)
	o.mu.Unlock()

	o.c.inFlight.Dec()
	o.c.chunksFailed.WithLabelValues(failureReason(err)).Inc()
}

func (o *downloadObserver) ChunkEmitted(_ int, size int) {
	o.mu.Lock()
	o.buffered--
	o.mu.Unlock()

	o.c.pending.Dec()
	o.c.bytesEmitted.Add(float64(size))
}

func (o *downloadObserver) DownloadFinished(err error) {
	// Chunks still buffered are dropped with the download.
	o.mu.Lock()
	dropped := o.buffered
	o.buffered = 0
	o.mu.Unlock()
	o.c.pending.Sub(float64(dropped))

	o.c.downloads.WithLabelValues(downloadResult(err)).Inc()
}

func failureReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func downloadResult(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, chunked.ErrClosed), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
