package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Postgres wraps gorm.DB with connection monitoring and reconnection.
//
// The active *gorm.DB lives in an atomic pointer so a reconnect can swap it
// without blocking readers.
type Postgres struct {
	cfg             Config
	logger          logger.Logger
	client          atomic.Pointer[gorm.DB]
	shutdownSignal  chan struct{}
	retryChanSignal chan error

	closeShutdownOnce sync.Once
}

// NewPostgres opens the connection and configures the pool.
func NewPostgres(cfg Config, log logger.Logger) (*Postgres, error) {
	conn, err := connectToPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("error in connecting to postgres: %w", err)
	}
	log.Info("Connected to PostgreSQL", nil, map[string]interface{}{
		"host": cfg.Connection.Host,
		"db":   cfg.Connection.DbName,
	})
	return NewFromDB(conn, log), nil
}

// NewFromDB wraps an already opened gorm connection. Tests use it with sqlite.
func NewFromDB(db *gorm.DB, log logger.Logger) *Postgres {
	pg := &Postgres{
		logger:          log,
		shutdownSignal:  make(chan struct{}),
		retryChanSignal: make(chan error, 1),
	}
	pg.client.Store(db)
	return pg
}

func connectToPostgres(cfg Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Connection.Host,
		cfg.Connection.Port,
		cfg.Connection.User,
		cfg.Connection.Password,
		cfg.Connection.DbName,
		cfg.Connection.SSLMode)

	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL database instance: %w", err)
	}

	maxOpen := cfg.ConnectionDetails.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = DefaultMaxOpenConns
	}
	maxIdle := cfg.ConnectionDetails.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = DefaultMaxIdleConns
	}
	maxLifetime := cfg.ConnectionDetails.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = DefaultConnMaxLifetime
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	return database, nil
}

// DB returns the current connection.
func (p *Postgres) DB() *gorm.DB {
	return p.client.Load()
}

// RetryConnection reconnects whenever MonitorConnection reports a failure.
func (p *Postgres) RetryConnection(ctx context.Context) {
outerLoop:
	for {
		select {
		case <-p.shutdownSignal:
			return
		case <-ctx.Done():
			return
		case <-p.retryChanSignal:
			for {
				select {
				case <-p.shutdownSignal:
					return
				case <-ctx.Done():
					return
				default:
				}

				conn, err := connectToPostgres(p.cfg)
				if err != nil {
					p.logger.Error("PostgreSQL reconnection failed", err, nil)
					time.Sleep(time.Second)
					continue
				}
				p.client.Store(conn)
				p.logger.Info("Reconnected to PostgreSQL", nil, nil)
				continue outerLoop
			}
		}
	}
}

// MonitorConnection pings the database every 10 seconds and signals
// RetryConnection on failure.
func (p *Postgres) MonitorConnection(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdownSignal:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Ping(context.Background()); err != nil {
				p.logger.Warn("PostgreSQL health check failed", err, nil)
				select {
				case p.retryChanSignal <- err:
				default:
				}
			}
		}
	}
}

// Ping checks connectivity with a 5 second bound.
func (p *Postgres) Ping(ctx context.Context) error {
	conn := p.DB()
	if conn == nil {
		return fmt.Errorf("database client is not initialized")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close stops the monitor loops and closes the pool.
func (p *Postgres) Close() error {
	p.closeShutdownOnce.Do(func() { close(p.shutdownSignal) })

	sqlDB, err := p.DB().DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}
