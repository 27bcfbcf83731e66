package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligustah/blobstream/internal/testutils"
	"github.com/ligustah/blobstream/pkg/chunked"
)

// runCLI runs the CLI with a quiet logger and no dotenv file.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--env-file", "", "--log-level", "error")
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestGetToFile(t *testing.T) {
	file := testutils.NewTestFile(t, "data.bin", 1024*1024+17)
	server := testutils.StartRangeServer(t, file)
	output := filepath.Join(t.TempDir(), "out.bin")

	code, _, stderr := runCLI(t, "get",
		"--source", server.FileURL(file.Name),
		"--chunk-size", "64KiB",
		"--concurrency", "4",
		"-o", output,
	)
	require.Equal(t, ExitSuccess, code, stderr)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(file.Data, got), "downloaded file differs")
	assert.EqualValues(t, 17, server.Requests.Load())
}

func TestGetToStdout(t *testing.T) {
	file := testutils.NewTestFile(t, "small.bin", 10_000)
	server := testutils.StartRangeServer(t, file)

	code, stdout, stderr := runCLI(t, "get",
		"--source", server.URL,
		"--object", file.Name,
		"--chunk-size", "1KiB",
		"-o", "-",
	)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, string(file.Data), stdout)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	file := testutils.NewTestFile(t, "flaky.bin", 4096)
	server := testutils.StartRangeServer(t, file)
	server.FailFirst.Store(2)

	code, stdout, stderr := runCLI(t, "get",
		"--source", server.FileURL(file.Name),
		"--chunk-size", "1KiB",
		"--backoff", "1ms",
	)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, string(file.Data), stdout)
	assert.EqualValues(t, 6, server.Requests.Load())
}

func TestGetWithProgressAndMetrics(t *testing.T) {
	file := testutils.NewTestFile(t, "observed.bin", 256*1024)
	server := testutils.StartRangeServer(t, file)
	output := filepath.Join(t.TempDir(), "observed.bin")

	code, _, stderr := runCLI(t, "get",
		"--source", server.FileURL(file.Name),
		"--chunk-size", "32KiB",
		"--progress",
		"--metrics-addr", "127.0.0.1:0",
		"-o", output,
	)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "[blobstream]")

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, file.Data, got)
}

func TestGetFromConfigFile(t *testing.T) {
	file := testutils.NewTestFile(t, "configured.bin", 50_000)
	server := testutils.StartRangeServer(t, file)

	dir := t.TempDir()
	output := filepath.Join(dir, "configured.bin")
	cfgPath := filepath.Join(dir, "blobstream.yaml")
	cfg := fmt.Sprintf("source: %s\nchunk_size: 8KiB\nconcurrency: 2\noutput: %s\n",
		server.FileURL(file.Name), output)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	code, _, stderr := runCLI(t, "get", "--config", cfgPath)
	require.Equal(t, ExitSuccess, code, stderr)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, file.Data, got)
	assert.EqualValues(t, 7, server.Requests.Load())
}

func TestGetNotFound(t *testing.T) {
	server := testutils.StartRangeServer(t)
	output := filepath.Join(t.TempDir(), "missing.bin")

	code, _, stderr := runCLI(t, "get", "--source", server.FileURL("missing.bin"), "-o", output)
	assert.Equal(t, ExitNotFound, code, stderr)

	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "no output file should be left behind")
}

func TestGetRangeForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "4096")
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	code, stdout, stderr := runCLI(t, "get", "--source", server.URL+"/locked.bin", "--chunk-size", "1KiB")
	assert.Equal(t, ExitFetchFailed, code, stderr)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error:")
}

func TestGetSendsHeaders(t *testing.T) {
	data := []byte("secret payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t0ken" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprint(len(data)))
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(data)-1, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data)
	}))
	defer server.Close()

	code, stdout, stderr := runCLI(t, "get", "--source", server.URL+"/s", "-H", "Authorization: Bearer t0ken")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, string(data), stdout)

	code, _, _ = runCLI(t, "get", "--source", server.URL+"/s")
	assert.Equal(t, ExitGeneralError, code, "a rejected HEAD is a metadata failure")
}

func TestStat(t *testing.T) {
	file := testutils.NewTestFile(t, "stat.bin", 12_345)
	server := testutils.StartRangeServer(t, file)

	t.Run("bytes", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "stat", "--source", server.FileURL(file.Name), "--bytes")
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Equal(t, "12345\n", stdout)
	})

	t.Run("human", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "stat", "--source", server.FileURL(file.Name))
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Contains(t, stdout, "Size:   12345")
		assert.Contains(t, stdout, "Chunks: 1 of 5.0 MiB")
	})

	t.Run("no range requests", func(t *testing.T) {
		assert.EqualValues(t, 0, server.Requests.Load())
	})

	t.Run("missing bucket object", func(t *testing.T) {
		code, _, stderr := runCLI(t, "stat", "--source", "mem://", "--object", "nothing-here")
		assert.Equal(t, ExitNotFound, code, stderr)
	})
}

func TestInvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing source", []string{"get"}},
		{"bucket without object", []string{"get", "--source", "mem://"}},
		{"bad chunk size", []string{"get", "--source", "http://localhost/x", "--chunk-size", "lots"}},
		{"negative concurrency", []string{"get", "--source", "http://localhost/x", "--concurrency", "-1"}},
		{"bad log level", []string{"stat", "--source", "http://localhost/x", "--log-level", "chatty"}},
		{"unknown flag", []string{"get", "--frobnicate"}},
		{"positional argument", []string{"stat", "extra"}},
		{"unknown bucket scheme", []string{"stat", "--source", "nope://bucket", "--object", "k"}},
		{"missing config file", []string{"get", "--config", "/does/not/exist.yaml"}},
		{"malformed header", []string{"get", "--source", "http://localhost/x", "-H", "no-colon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			args := append([]string{}, tt.args...)
			if !strings.Contains(strings.Join(args, " "), "--log-level") {
				args = append(args, "--log-level", "error")
			}
			args = append(args, "--env-file", "")

			code := run(context.Background(), args, &out, &errOut)
			assert.Equal(t, ExitInvalidArgs, code, errOut.String())
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &usageError{err: errors.New("bad flag")}, ExitInvalidArgs},
		{"not found", &chunked.MetadataError{Key: "k", Err: chunked.ErrNotFound}, ExitNotFound},
		{"fetch", fmt.Errorf("download k: %w", &chunked.FetchError{Chunk: chunked.Chunk{Index: 3}, Attempts: 6, Err: errors.New("reset")}), ExitFetchFailed},
		{"other", errors.New("disk full"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
