package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	qdrant "github.com/qdrant/go-client/qdrant"
	"go.uber.org/fx"
)

// pointsAPI is the subset of *qdrant.Client used here.
type pointsAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// QdrantParams groups the dependencies of NewQdrantClient.
type QdrantParams struct {
	fx.In

	Config   *Config
	Logger   logger.Logger
	Observer observability.Observer `optional:"true"`
}

// QdrantClient wraps the official Qdrant Go client and implements vectordb.Store.
type QdrantClient struct {
	api      pointsAPI
	cfg      *Config
	logger   logger.Logger
	observer observability.Observer
	now      func() time.Time
}

// NewQdrantClient connects to Qdrant and verifies connectivity with a health
// check so that an unreachable server fails the start.
func NewQdrantClient(p QdrantParams) (*QdrantClient, error) {
	p.Config.applyDefaults()

	p.Logger.Info("Connecting to Qdrant", nil, map[string]interface{}{
		"endpoint": p.Config.Endpoint,
		"port":     p.Config.Port,
	})

	api, err := qdrant.NewClient(&qdrant.Config{
		Host:                   p.Config.Endpoint,
		Port:                   p.Config.Port,
		APIKey:                 p.Config.ApiKey,
		UseTLS:                 p.Config.UseTLS,
		SkipCompatibilityCheck: !p.Config.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to initialize client: %w", err)
	}

	qc := newWithAPI(api, p.Config, p.Logger, p.Observer)
	if err := qc.healthCheck(); err != nil {
		_ = api.Close()
		return nil, err
	}

	p.Logger.Info("Qdrant client connected", nil, nil)
	return qc, nil
}

func newWithAPI(api pointsAPI, cfg *Config, log logger.Logger, obs observability.Observer) *QdrantClient {
	cfg.applyDefaults()
	if obs == nil {
		obs = observability.NoopObserver{}
	}
	return &QdrantClient{
		api:      api,
		cfg:      cfg,
		logger:   log,
		observer: obs,
		now:      time.Now,
	}
}

func (c *QdrantClient) healthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := c.api.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}

	c.logger.Debug("Qdrant health check passed", nil, map[string]interface{}{
		"title":   resp.GetTitle(),
		"version": resp.GetVersion(),
	})
	return nil
}

// Close releases the gRPC connection.
func (c *QdrantClient) Close() error {
	c.logger.Info("Closing Qdrant client", nil, nil)
	return c.api.Close()
}

func (c *QdrantClient) observe(op string, collection string, start time.Time, err error, size int) {
	c.observer.ObserveOperation(observability.OperationContext{
		Component: "qdrant",
		Operation: op,
		Resource:  collection,
		Duration:  time.Since(start),
		Error:     err,
		Size:      int64(size),
	})
}
