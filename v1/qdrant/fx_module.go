package qdrant

import (
	"context"

	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"go.uber.org/fx"
)

// FXModule provides *QdrantClient and vectordb.Store, creates the space
// collections on start and closes the client on stop.
var FXModule = fx.Module(
	"qdrant",
	fx.Provide(
		NewQdrantClient,
		func(c *QdrantClient) vectordb.Store { return c },
	),
	fx.Invoke(RegisterQdrantLifecycle),
)

// RegisterQdrantLifecycle wires EnsureCollections and Close into the fx lifecycle.
func RegisterQdrantLifecycle(lc fx.Lifecycle, c *QdrantClient) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.EnsureCollections(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
}
