package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMinioDocumentRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	endpoint, containerInstance := initializeMinio(ctx, t)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	client, err := NewClient(Config{
		Connection: ConnectionConfig{
			Endpoint:        endpoint,
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			BucketName:      "documents",
		},
	}, logger.NewNop(), nil)
	require.NoError(t, err)

	content := []byte("Architecture is the art of trade-offs.")

	t.Run("Upload and Download", func(t *testing.T) {
		require.NoError(t, client.Upload(ctx, "doc/abc", bytes.NewReader(content), int64(len(content))))

		data, err := client.Download(ctx, "doc/abc")
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("Signed URL serves the object", func(t *testing.T) {
		link, err := client.SignedURL(ctx, "doc/abc")
		require.NoError(t, err)

		resp, err := http.Get(link)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, content, body)
	})

	t.Run("Missing object", func(t *testing.T) {
		_, err := client.Download(ctx, "doc/missing")
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("Too large upload", func(t *testing.T) {
		err := client.Upload(ctx, "doc/huge", bytes.NewReader(nil), DefaultMaxObjectSize+1)
		assert.ErrorIs(t, err, ErrObjectTooLarge)
	})
}

func initializeMinio(ctx context.Context, t *testing.T) (string, testcontainers.Container) {
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:RELEASE.2024-06-13T22-53-53Z",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}

	containerInstance, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := containerInstance.Host(ctx)
	require.NoError(t, err)
	port, err := containerInstance.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port()), containerInstance
}
