//go:generate mockgen -destination=./mocks/source.go -package=mocks . Source

package chunked

import "context"

// Source is the object store a Stream reads from.
//
// Size returns the object's total size in bytes, or an error wrapping
// ErrNotFound if the object does not exist.
//
// ReadRange returns the bytes in [start, end] (inclusive). Errors are
// retried unless wrapped with Permanent.
type Source interface {
	Size(ctx context.Context, key string) (int64, error)
	ReadRange(ctx context.Context, key string, start, end int64) ([]byte, error)
}
