// Package testutils provides shared test infrastructure: deterministic test
// data, an HTTP range server and stream comparison helpers. The MinIO
// helpers are only built with the integration tag.
package testutils

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// TestFile defines a test file with size and data.
type TestFile struct {
	Name string
	Size int64
	Data []byte
}

// NewTestFile returns a TestFile with generated data of the given size.
func NewTestFile(t *testing.T, name string, size int64) TestFile {
	t.Helper()
	return TestFile{Name: name, Size: size, Data: GenerateTestData(t, size)}
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 253)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// RangeServer serves TestFiles over HTTP with single-range support.
type RangeServer struct {
	*httptest.Server

	// Requests counts GET requests carrying a Range header.
	Requests atomic.Int64

	// FailFirst makes the first N range requests answer 503.
	FailFirst atomic.Int64
}

// StartRangeServer starts an HTTP server that serves files by path
// ("/" + Name). It is closed when the test ends.
func StartRangeServer(t *testing.T, files ...TestFile) *RangeServer {
	t.Helper()

	fileMap := make(map[string][]byte)
	for _, f := range files {
		fileMap["/"+f.Name] = f.Data
	}

	rs := &RangeServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		size := int64(len(data))
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, r.URL.Path))

		rangeHeader := r.Header.Get("Range")
		if r.Method == http.MethodHead || rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			if r.Method != http.MethodHead {
				w.Write(data)
			}
			return
		}

		rs.Requests.Add(1)
		if rs.FailFirst.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		// bytes=start-end
		first, last, _ := strings.Cut(strings.TrimPrefix(rangeHeader, "bytes="), "-")
		start, _ := strconv.ParseInt(first, 10, 64)
		end, _ := strconv.ParseInt(last, 10, 64)

		if start >= size {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= size {
			end = size - 1
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	t.Cleanup(rs.Close)

	return rs
}

// FileURL returns the URL of the named file.
func (rs *RangeServer) FileURL(name string) string {
	return rs.Server.URL + "/" + name
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	chunkSize := 1024 * 1024 // 1MB
	buf := make([]byte, chunkSize)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
