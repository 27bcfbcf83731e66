// Package chunked streams a large remote object as a single ordered byte
// stream while fetching it as several byte ranges concurrently.
//
// Fetching one big object over a single connection is bound by round-trip
// latency. This package splits the object into fixed size chunks, fetches up
// to N of them at a time and hands them to the reader strictly in order. It is
// storage-agnostic via the [Source] interface; [BlobSource] covers anything
// gocloud.dev/blob can open (S3, GCS, in-memory).
//
// # Usage
//
//	src, err := chunked.OpenBucketSource(ctx, "s3://my-bucket?region=us-east-1")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	stream := chunked.Open(ctx, src, "backups/db.tar",
//	    chunked.WithChunkSize(8*1024*1024),
//	    chunked.WithConcurrency(8),
//	)
//	defer stream.Close()
//
//	_, err = io.Copy(dst, stream)
//
// Options:
//   - [WithChunkSize]: Bytes per range request (default 5 MiB)
//   - [WithConcurrency]: Maximum simultaneous range requests (default 5)
//   - [WithMaxRetries]: Retries per chunk after the first attempt (default 5)
//   - [WithBackoff]: Base delay and optional cap for retry backoff
//   - [WithRateLimit]: Limit on range requests per second
//   - [WithLogger], [WithObserver]: Logging and progress/metrics hooks
//
// # Ordering and Backpressure
//
// Chunks are dispatched in ascending order but may complete in any order.
// Completed chunks wait in a reassembly buffer until every earlier chunk has
// been handed to the reader. Nothing is handed over until the reader asks for
// data: each Read that finds no buffered bytes opens a shared gate for exactly
// one chunk. Workers check the same gate before taking their next chunk, so a
// reader that stops reading also stops the network traffic once the first
// round of in-flight fetches lands.
//
// # Errors
//
// A failed metadata lookup ends the stream with a [*MetadataError] before any
// chunk is fetched. A chunk that exhausts its retry budget ends the stream
// with a [*FetchError]; chunks buffered at that point are discarded. Sources
// mark errors that are not worth retrying with [Permanent].
//
// # Cancellation
//
// [Stream.Close] aborts in-flight fetches and releases buffered chunks. It is
// safe to call from another goroutine while a Read is blocked.
package chunked
