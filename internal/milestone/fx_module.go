package milestone

import (
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"go.uber.org/fx"
)

// FXModule provides *Trigger, completing through the guarded gateway.
var FXModule = fx.Module("milestone",
	fx.Provide(func(cfg Config, s *store.Store, p kafka.Publisher, g *processor.Gateway, log logger.Logger) *Trigger {
		return New(cfg, s, p, g, log)
	}),
)
