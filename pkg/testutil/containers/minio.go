//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"docdesk/internal/platform/config"
)

const (
	minioUser     = "docdesk"
	minioPassword = "docdesk-secret"
)

// MinioContainer is an S3-compatible object store for attachment tests.
type MinioContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

func NewMinioContainer(t *testing.T) *MinioContainer {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-08-17T01-24-54Z",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get minio endpoint: %v", err)
	}

	return &MinioContainer{Container: container, Endpoint: endpoint}
}

// Config returns S3 settings for bucket against this container.
func (m *MinioContainer) Config(bucket string) config.S3 {
	return config.S3{
		Endpoint:  m.Endpoint,
		Region:    "us-east-1",
		Bucket:    bucket,
		AccessKey: minioUser,
		SecretKey: minioPassword,
	}
}
