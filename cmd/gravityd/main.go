// Command gravityd runs the linking engine: the HTTP API, the event
// consumers and the supporting clients, composed with fx.
package main

import (
	"github.com/Aleph-Alpha/gravity/internal/api"
	"github.com/Aleph-Alpha/gravity/internal/config"
	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/milestone"
	"github.com/Aleph-Alpha/gravity/internal/pipeline"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
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
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap.Named("fx")}
		}),

		config.FXModule,

		// Infrastructure
		logger.FXModule,
		tracer.FXModule,
		metrics.FXModule,
		postgres.FXModule,
		redis.FXModule,
		minio.FXModule,
		kafka.FXModule,
		qdrant.FXModule,
		embedding.FXModule,

		// Engine
		store.FXModule,
		processor.FXModule,
		gravity.FXModule,
		reconciler.FXModule,
		milestone.FXModule,
		pipeline.FXModule,
		api.FXModule,
	).Run()
}
