// Package config loads the service configuration: a YAML file, then a .env
// file, then process environment variables, each layer overriding the
// previous one. Fields opt into environment overrides with an env tag.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Aleph-Alpha/gravity/internal/api"
	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/milestone"
	"github.com/Aleph-Alpha/gravity/internal/pipeline"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/metrics"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"github.com/Aleph-Alpha/gravity/v1/qdrant"
	"github.com/Aleph-Alpha/gravity/v1/redis"
	"github.com/Aleph-Alpha/gravity/v1/tracer"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the variable holding the YAML file path.
const PathEnv = "GRAVITY_CONFIG"

// Config is the complete service configuration.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Tracer    tracer.Config    `yaml:"tracer"`
	Metrics   metrics.Config   `yaml:"metrics"`
	Postgres  postgres.Config  `yaml:"postgres"`
	Kafka     kafka.Config     `yaml:"kafka"`
	Redis     redis.Config     `yaml:"redis"`
	Minio     minio.Config     `yaml:"minio"`
	Qdrant    qdrant.Config    `yaml:"qdrant"`
	Embedding embedding.Config `yaml:"embedding"`
	Processor processor.Config `yaml:"processor"`
	Gravity   gravity.Config   `yaml:"gravity"`
	Milestone milestone.Config `yaml:"milestone"`
	Pipeline  pipeline.Config  `yaml:"pipeline"`
	API       api.Config       `yaml:"api"`
}

// Load reads the file named by GRAVITY_CONFIG, if any, and the .env files
// in envFiles (default ".env"), then applies environment overrides and
// validates the result.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv(PathEnv); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := overlayEnv(cfg, env.ToMap(os.Environ())); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayEnv sets every field with an env tag whose variable is present in
// environ. Nested structs are walked; variables set to "" are ignored.
func overlayEnv(cfg *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports every missing setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(ok bool, what string) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: %s is required", what))
		}
	}

	require(c.Postgres.Connection.Host != "", "postgres.connection.host")
	require(c.Postgres.Connection.DbName != "", "postgres.connection.db_name")
	require(len(c.Kafka.Brokers) > 0, "kafka.brokers")
	require(c.Kafka.GroupID != "", "kafka.group_id")
	require(c.Redis.Host != "", "redis.host")
	require(c.Minio.Connection.Endpoint != "", "minio.connection.endpoint")
	require(c.Minio.Connection.BucketName != "", "minio.connection.bucket_name")
	require(c.Qdrant.Endpoint != "", "qdrant.endpoint")
	require(c.Embedding.Endpoint != "", "embedding.endpoint")
	require(c.API.JWT.Secret != "" || c.API.JWT.PublicKeyPEM != "", "api.jwt.secret or api.jwt.public_key_pem")

	if c.Qdrant.Dimension != 0 && c.Embedding.Dimension != 0 && c.Qdrant.Dimension != uint64(c.Embedding.Dimension) {
		errs = append(errs, fmt.Errorf("config: qdrant.dimension %d differs from embedding.dimension %d",
			c.Qdrant.Dimension, c.Embedding.Dimension))
	}
	return errors.Join(errs...)
}
