//go:build integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ligustah/blobstream/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	testFile := testutils.NewTestFile(t, "test/cli-file.bin", 3*1024*1024+100)

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "cli-test-bucket", testutils.WithMinioStartTimeout(time.Minute))
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()
	minio.Seed(t, ctx, testFile)

	t.Run("stat", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "stat",
			"--source", minio.BucketURL,
			"--object", testFile.Name,
			"--bytes",
		)
		if code != ExitSuccess {
			t.Fatalf("stat failed with exit code %d: %s", code, stderr)
		}
		if want := strconv.FormatInt(testFile.Size, 10) + "\n"; stdout != want {
			t.Fatalf("stat printed %q, want %q", stdout, want)
		}
	})

	t.Run("download_to_file", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "downloaded.bin")

		code, _, stderr := runCLI(t, "get",
			"--source", minio.BucketURL,
			"--object", testFile.Name,
			"--chunk-size", "256KiB",
			"--concurrency", "4",
			"-o", output,
		)
		if code != ExitSuccess {
			t.Fatalf("download failed with exit code %d: %s", code, stderr)
		}

		f, err := os.Open(output)
		if err != nil {
			t.Fatalf("open downloaded file: %v", err)
		}
		defer f.Close()
		testutils.CompareReaderToData(t, f, testFile.Data)
	})

	t.Run("download_prefix_match", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "get",
			"--source", minio.BucketURL,
			"--object", "test/cli-",
			"--prefix-match",
			"--chunk-size", "1MiB",
		)
		if code != ExitSuccess {
			t.Fatalf("download failed with exit code %d: %s", code, stderr)
		}
		if len(stdout) != len(testFile.Data) || stdout != string(testFile.Data) {
			t.Fatalf("stdout differs from object (%d bytes, want %d)", len(stdout), len(testFile.Data))
		}
	})

	t.Run("missing_object", func(t *testing.T) {
		code, _, _ := runCLI(t, "get",
			"--source", minio.BucketURL,
			"--object", "nonexistent/file.bin",
		)
		if code != ExitNotFound {
			t.Fatalf("expected exit code %d, got %d", ExitNotFound, code)
		}
	})
}
