package minio

import "time"

const (
	// DefaultPresignedExpiry is the validity of URLs returned by SignedURL.
	DefaultPresignedExpiry = 15 * time.Minute

	// DefaultMaxObjectSize bounds uploads and downloads (64MB).
	DefaultMaxObjectSize int64 = 64 << 20

	// DefaultConnectTimeout bounds the connection check and bucket creation on start.
	DefaultConnectTimeout = 30 * time.Second

	defaultContentType = "application/octet-stream"
)

// Config configures the document blob store.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	// PresignedExpiry is how long a signed download URL stays valid.
	PresignedExpiry time.Duration `yaml:"presigned_expiry"`

	// MaxObjectSize rejects larger uploads and downloads.
	MaxObjectSize int64 `yaml:"max_object_size"`

	// PublicEndpoint, if set, replaces the host of signed URLs (e.g. when the
	// internal endpoint is not reachable by browsers).
	PublicEndpoint string `yaml:"public_endpoint" env:"MINIO_PUBLIC_ENDPOINT"`
}

// ConnectionConfig holds endpoint and credentials.
type ConnectionConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"MINIO_SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME"`
	Region          string `yaml:"region" env:"MINIO_REGION"`
}

func (c *Config) applyDefaults() {
	if c.PresignedExpiry == 0 {
		c.PresignedExpiry = DefaultPresignedExpiry
	}
	if c.MaxObjectSize == 0 {
		c.MaxObjectSize = DefaultMaxObjectSize
	}
}
