package kafka

import (
	"context"
	"errors"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *KafkaClient, Publisher and *Router. A Config must be
// supplied by the application; handlers are registered through fx.Invoke
// before the router is started.
var FXModule = fx.Module(
	"kafka",
	fx.Provide(
		NewClientWithDI,
		func(k *KafkaClient) Publisher { return k },
		NewRouter,
	),
	fx.Invoke(RegisterKafkaLifecycle),
)

// KafkaParams groups the dependencies of NewClientWithDI.
type KafkaParams struct {
	fx.In

	Config   Config
	Logger   logger.Logger
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI is NewClient for fx.
func NewClientWithDI(p KafkaParams) (*KafkaClient, error) {
	return NewClient(p.Config, p.Logger, p.Observer)
}

// RegisterKafkaLifecycle runs the router in the background between OnStart
// and OnStop and closes the producer last.
func RegisterKafkaLifecycle(lc fx.Lifecycle, client *KafkaClient, router *Router, log logger.Logger, shutdowner fx.Shutdowner) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if len(router.Topics()) == 0 {
				close(done)
				return nil
			}
			go func() {
				defer close(done)
				if err := router.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Kafka router stopped", err, nil)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("Kafka router did not stop in time", ctx.Err(), nil)
			}
			return client.Close()
		},
	})
}
