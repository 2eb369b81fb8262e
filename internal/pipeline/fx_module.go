package pipeline

import (
	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/milestone"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/metrics"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"go.uber.org/fx"
)

// Params groups the dependencies of NewWithDI.
type Params struct {
	fx.In

	Config     Config
	Store      *store.Store
	Engine     *gravity.Engine
	Publisher  kafka.Publisher
	Milestones *milestone.Trigger
	Processor  *processor.Processor
	Gateway    *processor.Gateway
	Blobs      *minio.MinioClient
	Logger     logger.Logger
	Metrics    metrics.MetricsCollector `optional:"true"`
}

// NewWithDI is New for fx.
func NewWithDI(p Params) *Pipeline {
	return New(p.Config, Deps{
		Store:      p.Store,
		Engine:     p.Engine,
		Publisher:  p.Publisher,
		Milestones: p.Milestones,
		Summarizer: p.Gateway,
		Analyzer:   p.Processor,
		Blobs:      p.Blobs,
		Logger:     p.Logger,
		Metrics:    p.Metrics,
	})
}

// FXModule provides *Pipeline and registers every consumer on the router.
var FXModule = fx.Module("pipeline",
	fx.Provide(NewWithDI),
	fx.Invoke(func(router *kafka.Router, p *Pipeline, r *reconciler.Reconciler, m *milestone.Trigger) {
		Register(router, Routes(p, r, m))
	}),
)
