package config

import (
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
	"go.uber.org/fx"
)

// Sections exposes each package configuration to the container.
type Sections struct {
	fx.Out

	Logger    logger.Config
	Tracer    tracer.Config
	Metrics   metrics.Config
	Postgres  postgres.Config
	Kafka     kafka.Config
	Redis     redis.Config
	Minio     minio.Config
	Qdrant    *qdrant.Config
	Embedding *embedding.Config
	Processor processor.Config
	Gravity   gravity.Config
	Milestone milestone.Config
	Pipeline  pipeline.Config
	API       api.Config
}

// Split hands out the sections of c.
func Split(c *Config) Sections {
	qc := c.Qdrant
	ec := c.Embedding
	return Sections{
		Logger:    c.Logger,
		Tracer:    c.Tracer,
		Metrics:   c.Metrics,
		Postgres:  c.Postgres,
		Kafka:     c.Kafka,
		Redis:     c.Redis,
		Minio:     c.Minio,
		Qdrant:    &qc,
		Embedding: &ec,
		Processor: c.Processor,
		Gravity:   c.Gravity,
		Milestone: c.Milestone,
		Pipeline:  c.Pipeline,
		API:       c.API,
	}
}

// FXModule loads the configuration and provides every section.
var FXModule = fx.Module("config",
	fx.Provide(
		func() (*Config, error) { return Load() },
		Split,
	),
)
