package chunked

import "fmt"

// Chunk is a contiguous byte range of the source object fetched by a single
// range request. End is inclusive, like an HTTP Range header.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of bytes in the chunk.
func (c Chunk) Len() int64 {
	return c.End - c.Start + 1
}

// ChunkCount returns ceil(totalSize / chunkSize).
func ChunkCount(totalSize, chunkSize int64) int {
	n := totalSize / chunkSize
	if totalSize%chunkSize != 0 {
		n++
	}
	return int(n)
}

// Plan splits [0, totalSize) into chunks of chunkSize bytes. The last chunk
// may be shorter. A zero totalSize yields an empty plan.
func Plan(totalSize, chunkSize int64) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidPlan, chunkSize)
	}
	if totalSize < 0 {
		return nil, fmt.Errorf("%w: total size must not be negative, got %d", ErrInvalidPlan, totalSize)
	}

	chunks := make([]Chunk, ChunkCount(totalSize, chunkSize))
	for i := range chunks {
		start := int64(i) * chunkSize
		end := min(start+chunkSize, totalSize) - 1
		chunks[i] = Chunk{Index: i, Start: start, End: end}
	}
	return chunks, nil
}
