package api

import "time"

// Defaults.
const (
	DefaultAddress         = ":8080"
	DefaultMaxUploadBytes  = 32 << 20
	DefaultReadTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServiceName     = "gravityd"
)

// Config controls the HTTP server.
type Config struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS"`
	ServiceName    string        `yaml:"service_name" env:"SERVICE_NAME"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig selects how bearer tokens are verified. Exactly one of Secret
// (HS256) or PublicKeyPEM (RS256) must be set.
type JWTConfig struct {
	Secret       string `yaml:"-" env:"JWT_SECRET"`
	PublicKeyPEM string `yaml:"public_key_pem" env:"JWT_PUBLIC_KEY_PEM"`

	// Issuer, when set, must match the iss claim.
	Issuer string `yaml:"issuer" env:"JWT_ISSUER"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}
