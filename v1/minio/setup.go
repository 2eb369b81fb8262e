package minio

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient stores uploaded documents in a single bucket.
type MinioClient struct {
	client     *minio.Client
	cfg        Config
	logger     logger.Logger
	observer   observability.Observer
	bufferPool *bufferPool
}

// NewClient connects to MinIO, checks the connection and creates the bucket
// when it does not exist yet.
func NewClient(cfg Config, log logger.Logger, observer observability.Observer) (*MinioClient, error) {
	cfg.applyDefaults()
	if cfg.Connection.BucketName == "" {
		return nil, fmt.Errorf("minio: bucket name is required")
	}

	client, err := connectToMinio(cfg)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = observability.NoopObserver{}
	}

	m := &MinioClient{
		client:     client,
		cfg:        cfg,
		logger:     log,
		observer:   observer,
		bufferPool: newBufferPool(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectTimeout)
	defer cancel()
	if err := m.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client initialized", nil, map[string]interface{}{
		"endpoint": cfg.Connection.Endpoint,
		"bucket":   cfg.Connection.BucketName,
	})
	return m, nil
}

func connectToMinio(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: failed to create client: %w", err)
	}
	return client, nil
}

// ensureBucketExists doubles as the connection check.
func (m *MinioClient) ensureBucketExists(ctx context.Context) error {
	bucket := m.cfg.Connection.BucketName
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("minio: connection check failed: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Connection.Region})
	if err != nil {
		// Another replica may have created it in the meantime.
		if exists, errCheck := m.client.BucketExists(ctx, bucket); errCheck == nil && exists {
			return nil
		}
		return fmt.Errorf("minio: failed to create bucket %s: %w", bucket, err)
	}
	m.logger.Info("Created MinIO bucket", nil, map[string]interface{}{"bucket": bucket})
	return nil
}

// bufferPool reuses download buffers. Buffers that grew past maxBufferSize
// are dropped instead of being returned.
type bufferPool struct {
	pool          sync.Pool
	maxBufferSize int
}

const (
	initialBufferSize = 64 * 1024
	maxBufferSize     = 32 * 1024 * 1024
)

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, initialBufferSize))
			},
		},
		maxBufferSize: maxBufferSize,
	}
}

func (bp *bufferPool) get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (bp *bufferPool) put(b *bytes.Buffer) {
	if b == nil || b.Cap() > bp.maxBufferSize {
		return
	}
	b.Reset()
	bp.pool.Put(b)
}
