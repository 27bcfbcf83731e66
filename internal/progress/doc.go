// Package progress provides progress reporting for downloads.
//
// The Reporter is a chunked.Observer. It writes human-readable progress to
// stderr, including completion percentage, transfer speed and ETA.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Source:      url,
//	    ChunkSize:   chunkSize,
//	    Concurrency: 8,
//	})
//	reporter.Start()
//	defer reporter.Stop()
//
//	stream := chunked.Open(ctx, src, key, chunked.WithObserver(reporter))
//
// # Output Format
//
//	[blobstream] Downloading: s3://bucket/backup.tar
//	[blobstream] Total size: 2.5 TiB | Chunks: 524288 x 5.0 MiB | Concurrency: 16
//	[blobstream] Progress: 45.2% | 1.1 TiB / 2.5 TiB | Speed: 1.2 GiB/s | ETA: 18m 32s
//	[blobstream] Chunks: 4628 delivered | 3 buffered | 16 in-flight | 5596 pending | 0 retries
package progress
