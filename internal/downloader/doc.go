// Package downloader copies a remote object to a local writer or file.
//
// It wires a chunked.Stream to its destination together with the progress
// reporter and any other observers, and checks that the byte count matches
// the object's size.
//
// # Usage
//
//	n, err := downloader.Download(ctx, src, "backups/db.tar", os.Stdout, downloader.Options{
//	    Stream:   []chunked.Option{chunked.WithConcurrency(16)},
//	    Progress: reporter,
//	})
//
// DownloadToFile writes to a temporary file next to the destination and
// renames it into place once the whole object has been written and synced.
// On SIGINT/SIGTERM the context is cancelled, the stream is closed and the
// temporary file is removed.
package downloader
