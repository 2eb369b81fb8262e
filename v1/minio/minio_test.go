package minio

import (
	"errors"
	"net/url"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultPresignedExpiry, cfg.PresignedExpiry)
	assert.Equal(t, DefaultMaxObjectSize, cfg.MaxObjectSize)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	notFound := minio.ErrorResponse{Code: "NoSuchKey", Key: "documents/abc"}
	assert.ErrorIs(t, TranslateError(notFound), ErrObjectNotFound)

	tooLarge := minio.ErrorResponse{Code: "EntityTooLarge"}
	assert.ErrorIs(t, TranslateError(tooLarge), ErrObjectTooLarge)

	other := errors.New("connection refused")
	assert.Equal(t, other, TranslateError(other))
}

func TestRewriteHost(t *testing.T) {
	u, err := url.Parse("http://minio:9000/documents/abc?X-Amz-Signature=1")
	require.NoError(t, err)

	out, err := rewriteHost(u, "https://files.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/documents/abc?X-Amz-Signature=1", out)
}

func TestBufferPoolDropsOversizedBuffers(t *testing.T) {
	bp := newBufferPool()
	bp.maxBufferSize = 8

	buf := bp.get()
	buf.WriteString("0123456789")
	bp.put(buf)

	again := bp.get()
	assert.Equal(t, 0, again.Len())
}
