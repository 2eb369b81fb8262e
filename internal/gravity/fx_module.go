package gravity

import (
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"go.uber.org/fx"
)

// FXModule provides *Engine, embedding through the guarded gateway.
var FXModule = fx.Module("gravity",
	fx.Provide(func(cfg Config, g *processor.Gateway, index vectordb.Store, s *store.Store, log logger.Logger) *Engine {
		return New(cfg, g, index, s, log)
	}),
)
