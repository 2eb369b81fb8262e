package redis

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the go-redis client with observer hooks and JSON helpers.
type RedisClient struct {
	client   redis.UniversalClient
	logger   logger.Logger
	observer observability.Observer
}

// NewClient creates a client for a standalone Redis server. The connection
// is established lazily; call Ping to verify it.
func NewClient(cfg Config, log logger.Logger, observer observability.Observer) (*RedisClient, error) {
	cfg.applyDefaults()

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = createTLSConfig(cfg.TLS, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("redis: failed to create TLS config: %w", err)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.IdleTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		TLSConfig:       tlsConfig,
	})

	log.Info("Redis client initialized", nil, map[string]interface{}{
		"addr": fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"db":   cfg.DB,
	})

	return NewFromClient(client, log, observer), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client redis.UniversalClient, log logger.Logger, observer observability.Observer) *RedisClient {
	if observer == nil {
		observer = observability.NoopObserver{}
	}
	return &RedisClient{client: client, logger: log, observer: observer}
}

// Client exposes the underlying go-redis client.
func (r *RedisClient) Client() redis.UniversalClient {
	return r.client
}

// Close closes the connection pool.
func (r *RedisClient) Close() error {
	r.logger.Info("Closing Redis client", nil, nil)
	return r.client.Close()
}

func createTLSConfig(cfg TLSConfig, host string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ServerName:         cfg.ServerName,
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = host
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
