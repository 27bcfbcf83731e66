// Package http reads objects from plain HTTP servers with range requests.
//
// [Client] issues HEAD and ranged GET requests over a pooled transport and
// retries transport failures and 5xx responses with jittered exponential
// backoff. Responses it does not accept come back as *[StatusError], which
// matches the package's sentinel errors with errors.Is.
//
// [Source] adapts the client to chunked.Source with its retries turned off,
// so a URL can be streamed like any bucket object:
//
//	src := http.NewSource(http.DefaultOptions())
//	stream := chunked.Open(ctx, src, "https://example.com/big.iso")
//	defer stream.Close()
//
// With Options.PinETag the source sends If-Match on every range request
// once it has seen the object's strong ETag. A replaced object then fails
// the download with ErrObjectChanged.
package http
