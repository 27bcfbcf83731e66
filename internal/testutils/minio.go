//go:build integration

package testutils

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"

	"github.com/ligustah/blobstream/pkg/chunked"
)

const (
	minioUser     = "blobstream"
	minioPassword = "blobstream-secret"
	minioAlias    = "minio" // network alias the mc sidecar dials
)

// MinioEnv is a running MinIO server with one bucket.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string // gocloud s3:// URL, credentials come from the env
	Endpoint  string // host:port
}

// Close terminates the MinIO container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container == nil {
		return nil
	}
	return e.Container.Terminate(ctx)
}

// OpenBucket opens the bucket with gocloud.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// OpenSource opens the bucket as a chunked.Source, closed when the test ends.
func (e *MinioEnv) OpenSource(t *testing.T, ctx context.Context, options ...chunked.BlobOption) *chunked.BlobSource {
	t.Helper()
	src, err := chunked.OpenBucketSource(ctx, e.BucketURL, options...)
	if err != nil {
		t.Fatalf("open bucket source: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

// Seed uploads each file to the bucket under its name.
func (e *MinioEnv) Seed(t *testing.T, ctx context.Context, files ...TestFile) {
	t.Helper()

	bucket, err := e.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	for _, f := range files {
		if err := bucket.WriteAll(ctx, f.Name, f.Data, nil); err != nil {
			t.Fatalf("seed %s: %v", f.Name, err)
		}
	}
}

type minioConfig struct {
	image        string
	mcImage      string
	startTimeout time.Duration
}

// MinioOption configures StartMinioContainer.
type MinioOption func(*minioConfig)

// WithMinioStartTimeout bounds how long to wait for the server to be ready.
func WithMinioStartTimeout(d time.Duration) MinioOption {
	return func(c *minioConfig) { c.startTimeout = d }
}

// StartMinioContainer starts MinIO, creates bucketName with an mc sidecar
// and points the AWS credential env vars at it for the rest of the test.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string, opts ...MinioOption) *MinioEnv {
	t.Helper()

	cfg := minioConfig{
		image:        "minio/minio:latest",
		mcImage:      "minio/mc:latest",
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	netName := fmt.Sprintf("blobstream-minio-%d", time.Now().UnixNano())
	nw, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{Name: netName},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { nw.Remove(context.Background()) })

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          cfg.image,
			Cmd:            []string{"server", "/data"},
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{netName},
			NetworkAliases: map[string][]string{netName: {minioAlias}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("9000/tcp"),
				wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp"),
			).WithDeadline(cfg.startTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}

	makeBucket(t, ctx, cfg.mcImage, netName, bucketName)

	endpoint, err := server.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	q := url.Values{}
	q.Set("endpoint", "http://"+endpoint)
	q.Set("region", "us-east-1")
	q.Set("use_path_style", "true")
	q.Set("disable_https", "true")

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	return &MinioEnv{
		Container: server,
		BucketURL: "s3://" + bucketName + "?" + q.Encode(),
		Endpoint:  endpoint,
	}
}

// makeBucket runs mc once on the network to create the bucket.
func makeBucket(t *testing.T, ctx context.Context, image, netName, bucketName string) {
	t.Helper()

	script := fmt.Sprintf("mc alias set local http://%s:9000 %s %s && mc mb --ignore-existing local/%s",
		minioAlias, minioUser, minioPassword, bucketName)

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      image,
			Networks:   []string{netName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd:        []string{script},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("run mc: %v", err)
	}
	defer mc.Terminate(context.Background())

	state, err := mc.State(ctx)
	if err != nil {
		t.Fatalf("mc state: %v", err)
	}
	if state.ExitCode != 0 {
		t.Fatalf("mc exited with %d creating bucket %s", state.ExitCode, bucketName)
	}
}
