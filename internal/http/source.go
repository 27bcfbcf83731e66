package http

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ligustah/blobstream/pkg/chunked"
)

// Source adapts a Client to chunked.Source. Keys are URLs.
//
// The client's own retry loop is turned off: retries and backoff belong to
// the chunked scheduler, which sees every failed attempt.
type Source struct {
	client  *Client
	pinETag bool

	mu    sync.Mutex
	etags map[string]string // url -> strong ETag seen by Size
}

var _ chunked.Source = (*Source)(nil)

// NewSource returns a Source using a client built from opts with
// RetryAttempts forced to zero.
func NewSource(opts Options) *Source {
	opts.RetryAttempts = 0
	return &Source{
		client:  NewClient(opts),
		pinETag: opts.PinETag,
		etags:   make(map[string]string),
	}
}

// Size returns the Content-Length reported by a HEAD request.
func (s *Source) Size(ctx context.Context, url string) (int64, error) {
	md, err := s.Stat(ctx, url)
	if err != nil {
		return 0, err
	}
	if md.Size < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSize, url)
	}
	return md.Size, nil
}

// Stat returns the metadata of url and remembers its ETag for later range
// reads.
func (s *Source) Stat(ctx context.Context, url string) (*Metadata, error) {
	md, err := s.client.Stat(ctx, url)
	if err != nil {
		return nil, classify(err)
	}
	if etag, ok := md.StrongETag(); ok && s.pinETag {
		s.mu.Lock()
		s.etags[url] = etag
		s.mu.Unlock()
	}
	return md, nil
}

// ReadRange fetches bytes [start, end] of url.
func (s *Source) ReadRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	s.mu.Lock()
	etag := s.etags[url]
	s.mu.Unlock()

	data, err := s.client.ReadRange(ctx, url, start, end, etag)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// classify marks responses that a retry will not change as permanent.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrRangeNotSupported),
		errors.Is(err, ErrObjectChanged):
		return chunked.Permanent(err)
	default:
		return err
	}
}
