package chunked

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// BlobSource reads objects from a gocloud.dev/blob bucket.
type BlobSource struct {
	bucket      *blob.Bucket
	prefixMatch bool
	owned       bool // bucket was opened by OpenBucketSource

	mu       sync.Mutex
	resolved map[string]string // requested key -> matched key (prefix mode)
}

// BlobOption configures a BlobSource.
type BlobOption func(*BlobSource)

// WithPrefixMatch makes Size list objects with the key as a prefix and use
// the first match instead of looking the key up exactly. Later range reads
// for the key go to the matched object. Off by default: with overlapping
// keys ("a.bin", "a.bin.bak") the first match may not be the object asked
// for.
func WithPrefixMatch(enabled bool) BlobOption {
	return func(s *BlobSource) {
		s.prefixMatch = enabled
	}
}

// NewBlobSource returns a Source backed by bucket. The caller keeps ownership
// of the bucket.
func NewBlobSource(bucket *blob.Bucket, options ...BlobOption) *BlobSource {
	s := &BlobSource{
		bucket:   bucket,
		resolved: make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// OpenBucketSource opens a bucket by URL (s3://, gs://, mem://) and returns a
// Source that closes it on Close.
func OpenBucketSource(ctx context.Context, bucketURL string, options ...BlobOption) (*BlobSource, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("chunked: open bucket: %w", err)
	}

	s := NewBlobSource(bucket, options...)
	s.owned = true
	return s, nil
}

// Size returns the object's size.
func (s *BlobSource) Size(ctx context.Context, key string) (int64, error) {
	if s.prefixMatch {
		return s.sizeByPrefix(ctx, key)
	}

	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("chunked: get attributes: %w", err)
	}
	return attrs.Size, nil
}

func (s *BlobSource) sizeByPrefix(ctx context.Context, prefix string) (int64, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return 0, fmt.Errorf("%w: no object with prefix %s", ErrNotFound, prefix)
		}
		if err != nil {
			return 0, fmt.Errorf("chunked: list prefix: %w", err)
		}
		if obj.IsDir {
			continue
		}

		s.mu.Lock()
		s.resolved[prefix] = obj.Key
		s.mu.Unlock()
		return obj.Size, nil
	}
}

// ReadRange reads bytes [start, end] of key.
func (s *BlobSource) ReadRange(ctx context.Context, key string, start, end int64) ([]byte, error) {
	if end < start {
		return nil, Permanent(fmt.Errorf("chunked: invalid range %d-%d", start, end))
	}

	r, err := s.bucket.NewRangeReader(ctx, s.objectKey(key), start, end-start+1, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("chunked: open range reader: %w", err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify(fmt.Errorf("chunked: read range: %w", err))
	}
	return data, nil
}

// Close closes the bucket if it was opened by OpenBucketSource.
func (s *BlobSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.bucket.Close()
}

func (s *BlobSource) objectKey(key string) string {
	if !s.prefixMatch {
		return key
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.resolved[key]; ok {
		return k
	}
	return key
}

// classify marks errors that retrying will not fix as permanent.
func classify(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return Permanent(errors.Join(ErrNotFound, err))
	case gcerrors.PermissionDenied, gcerrors.InvalidArgument, gcerrors.FailedPrecondition, gcerrors.Unimplemented:
		return Permanent(err)
	default:
		return err
	}
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
