package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// Upload stores size bytes from reader under key. A negative size streams
// an object of unknown length.
func (m *MinioClient) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	return m.UploadWithContentType(ctx, key, reader, size, defaultContentType)
}

// UploadWithContentType is Upload with an explicit content type.
func (m *MinioClient) UploadWithContentType(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if size > m.cfg.MaxObjectSize {
		return ErrObjectTooLarge
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	start := time.Now()
	info, err := m.client.PutObject(ctx, m.cfg.Connection.BucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	err = TranslateError(err)
	m.observeOperation("put", key, start, err, info.Size)
	if err != nil {
		return fmt.Errorf("minio: upload %s: %w", key, err)
	}
	return nil
}

// Download returns the full content of key.
func (m *MinioClient) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	start := time.Now()
	data, err := m.download(ctx, key)
	m.observeOperation("get", key, start, err, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("minio: download %s: %w", key, err)
	}
	return data, nil
}

func (m *MinioClient) download(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.cfg.Connection.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, TranslateError(err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		return nil, TranslateError(err)
	}
	if stat.Size > m.cfg.MaxObjectSize {
		return nil, ErrObjectTooLarge
	}

	buf := m.bufferPool.get()
	defer m.bufferPool.put(buf)

	if _, err := io.Copy(buf, io.LimitReader(obj, m.cfg.MaxObjectSize+1)); err != nil {
		return nil, TranslateError(err)
	}
	if int64(buf.Len()) > m.cfg.MaxObjectSize {
		return nil, ErrObjectTooLarge
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// SignedURL returns a presigned GET URL for key valid for PresignedExpiry.
func (m *MinioClient) SignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	start := time.Now()
	u, err := m.client.PresignedGetObject(ctx, m.cfg.Connection.BucketName, key, m.cfg.PresignedExpiry, url.Values{})
	m.observeOperation("presign_get", key, start, err, 0)
	if err != nil {
		return "", fmt.Errorf("minio: sign %s: %w", key, err)
	}

	if m.cfg.PublicEndpoint != "" {
		return rewriteHost(u, m.cfg.PublicEndpoint)
	}
	return u.String(), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MinioClient) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := TranslateError(m.client.RemoveObject(ctx, m.cfg.Connection.BucketName, key, minio.RemoveObjectOptions{}))
	m.observeOperation("delete", key, start, err, 0)
	return err
}

func rewriteHost(u *url.URL, publicEndpoint string) (string, error) {
	public, err := url.Parse(publicEndpoint)
	if err != nil {
		return "", fmt.Errorf("minio: invalid public endpoint: %w", err)
	}
	out := *u
	if public.Scheme != "" {
		out.Scheme = public.Scheme
	}
	out.Host = public.Host
	return out.String(), nil
}
