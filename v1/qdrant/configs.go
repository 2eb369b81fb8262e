package qdrant

import (
	"time"

	"github.com/Aleph-Alpha/gravity/v1/vectordb"
)

// Defaults used by DefaultConfig.
const (
	DefaultPort                = 6334
	DefaultDimension           = 1536
	DefaultUserCollection      = "gravity_user"
	DefaultGuestCollection     = "gravity_guest"
	DefaultReferenceCollection = "gravity_reference"
)

// Config holds connection and collection settings for the Qdrant client.
type Config struct {
	// Hostname of the Qdrant server, e.g. "localhost".
	Endpoint string `yaml:"endpoint" env:"QDRANT_ENDPOINT"`

	// gRPC port of the Qdrant server.
	Port int `yaml:"port" env:"QDRANT_PORT"`

	ApiKey string `yaml:"-" env:"QDRANT_API_KEY"`

	UseTLS bool `yaml:"use_tls" env:"QDRANT_USE_TLS"`

	// Collection names per space.
	UserCollection      string `yaml:"user_collection" env:"QDRANT_USER_COLLECTION"`
	GuestCollection     string `yaml:"guest_collection" env:"QDRANT_GUEST_COLLECTION"`
	ReferenceCollection string `yaml:"reference_collection" env:"QDRANT_REFERENCE_COLLECTION"`

	// Dimension of the vectors stored in every collection.
	Dimension uint64 `yaml:"dimension" env:"QDRANT_DIMENSION"`

	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout" env:"QDRANT_TIMEOUT"`

	CheckCompatibility bool `yaml:"check_compatibility" env:"QDRANT_CHECK_COMPATIBILITY"`
}

// DefaultConfig provides sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:            "localhost",
		Port:                DefaultPort,
		UserCollection:      DefaultUserCollection,
		GuestCollection:     DefaultGuestCollection,
		ReferenceCollection: DefaultReferenceCollection,
		Dimension:           DefaultDimension,
		Timeout:             5 * time.Second,
		CheckCompatibility:  true,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.UserCollection == "" {
		c.UserCollection = d.UserCollection
	}
	if c.GuestCollection == "" {
		c.GuestCollection = d.GuestCollection
	}
	if c.ReferenceCollection == "" {
		c.ReferenceCollection = d.ReferenceCollection
	}
	if c.Dimension == 0 {
		c.Dimension = d.Dimension
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
}

// Collection returns the collection backing space.
func (c *Config) Collection(space vectordb.Space) string {
	switch space {
	case vectordb.SpaceGuest:
		return c.GuestCollection
	case vectordb.SpaceReference:
		return c.ReferenceCollection
	default:
		return c.UserCollection
	}
}
