package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Tracer and flushes it on shutdown.
var FXModule = fx.Module("tracer",
	fx.Provide(NewClient),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle shuts the provider down on OnStop so buffered spans are exported.
func RegisterTracerLifecycle(lc fx.Lifecycle, t *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			t.logger.Info("shutting down tracer", nil, nil)
			return t.Shutdown(ctx)
		},
	})
}
