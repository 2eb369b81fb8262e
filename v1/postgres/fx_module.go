package postgres

import (
	"context"
	"sync"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"go.uber.org/fx"
)

// FXModule provides *Postgres and runs the connection monitor for the
// lifetime of the application. A Config must be supplied.
var FXModule = fx.Module("postgres",
	fx.Provide(NewPostgresClientWithDI),
	fx.Invoke(RegisterPostgresLifecycle),
)

// PostgresParams groups the dependencies of NewPostgresClientWithDI.
type PostgresParams struct {
	fx.In

	Config Config
	Logger logger.Logger
}

// NewPostgresClientWithDI is NewPostgres for fx.
func NewPostgresClientWithDI(params PostgresParams) (*Postgres, error) {
	return NewPostgres(params.Config, params.Logger)
}

// RegisterPostgresLifecycle starts MonitorConnection and RetryConnection and
// closes the pool on stop.
func RegisterPostgresLifecycle(lc fx.Lifecycle, pg *Postgres) {
	wg := &sync.WaitGroup{}
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(2)
			go func() {
				defer wg.Done()
				pg.MonitorConnection(runCtx)
			}()
			go func() {
				defer wg.Done()
				pg.RetryConnection(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			err := pg.Close()
			wg.Wait()
			return err
		},
	})
}
