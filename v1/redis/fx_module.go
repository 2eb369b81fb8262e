package redis

import (
	"context"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *RedisClient. A Config must be supplied.
var FXModule = fx.Module("redis",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterRedisLifecycle),
)

// RedisParams groups the dependencies of NewClientWithDI.
type RedisParams struct {
	fx.In

	Config   Config
	Logger   logger.Logger
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI is NewClient for fx.
func NewClientWithDI(p RedisParams) (*RedisClient, error) {
	return NewClient(p.Config, p.Logger, p.Observer)
}

// RegisterRedisLifecycle pings the server on start and closes the pool on stop.
func RegisterRedisLifecycle(lc fx.Lifecycle, client *RedisClient) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
