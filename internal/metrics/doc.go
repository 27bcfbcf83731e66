// Package metrics exports Prometheus metrics for chunked downloads.
//
// A Collector is created once per process and registered with a
// prometheus.Registerer. Each download gets its own observer:
//
//	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
//	...
//	stream := chunked.Open(ctx, src, key, chunked.WithObserver(collector.Observer()))
//
// Metrics (namespace blobstream):
//   - download_total{result}: finished downloads (complete, error, cancelled)
//   - download_object_size_bytes: histogram of object sizes
//   - chunk_fetched_total, chunk_fetched_bytes_total
//   - chunk_failed_total{reason}: fetches that ended without data (error, canceled)
//   - chunk_retries_total
//   - chunk_in_flight: running fetches, backoff waits included
//   - chunk_fetch_duration_seconds: histogram, retries included
//   - stream_pending_chunks: chunks waiting in reassembly buffers
//   - stream_emitted_bytes_total: bytes handed to readers
package metrics
