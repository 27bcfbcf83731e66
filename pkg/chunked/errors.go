package chunked

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound is returned by sources when the object does not exist.
	ErrNotFound = errors.New("chunked: object not found")

	// ErrInvalidPlan is returned by Plan for a non-positive chunk size or a
	// negative total size.
	ErrInvalidPlan = errors.New("chunked: invalid chunk plan")

	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("chunked: stream closed")
)

// MetadataError is returned when the object's size cannot be resolved.
// No chunk is fetched once this happens.
type MetadataError struct {
	Key string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("chunked: resolve metadata for %q: %v", e.Key, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a chunk could not be fetched within its retry
// budget, or failed with a permanent error. It ends the whole stream.
//
// Use errors.As to extract this error and inspect the failed chunk.
type FetchError struct {
	Chunk    Chunk // The chunk that failed
	Attempts int   // Number of attempts made
	Err      error // The last error returned by the source
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("chunked: fetch chunk %d (bytes %d-%d) failed after %d attempts: %v",
		e.Chunk.Index, e.Chunk.Start, e.Chunk.End, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// permanentError marks a source error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the scheduler fails the chunk without retrying.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
