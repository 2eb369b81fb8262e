package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// messageWriter is the subset of *kafka.Writer used by the client.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader is the subset of *kafka.Reader used by the router.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaClient publishes JSON events and creates consumer-group readers.
type KafkaClient struct {
	cfg      Config
	logger   logger.Logger
	observer observability.Observer

	writer messageWriter
	dialer *kafka.Dialer
}

// NewClient builds the shared writer and the dialer used by every reader.
// The writer carries no topic; every message names its own.
func NewClient(cfg Config, log logger.Logger, observer observability.Observer) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	cfg.applyDefaults()

	if observer == nil {
		observer = observability.NoopObserver{}
	}

	dialer := &kafka.Dialer{}
	if cfg.TLS.Enabled {
		tlsConfig, err := createTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("kafka: failed to create TLS config: %w", err)
		}
		dialer.TLS = tlsConfig
	}
	if cfg.SASL.Enabled {
		mechanism, err := createSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("kafka: failed to create SASL mechanism: %w", err)
		}
		dialer.SASLMechanism = mechanism
	}

	k := &KafkaClient{
		cfg:      cfg,
		logger:   log,
		observer: observer,
		dialer:   dialer,
	}
	k.writer = createWriter(cfg, dialer, k.errorLogger())

	log.Info("Kafka producer initialized", nil, map[string]interface{}{
		"brokers": cfg.Brokers,
	})
	return k, nil
}

// Close flushes and closes the writer.
func (k *KafkaClient) Close() error {
	k.logger.Info("Closing Kafka producer", nil, nil)
	return k.writer.Close()
}

// newReader opens a consumer-group reader with manual commits.
func (k *KafkaClient) newReader(topic string) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.cfg.Brokers,
		GroupID:        k.cfg.GroupID,
		Topic:          topic,
		MinBytes:       k.cfg.MinBytes,
		MaxBytes:       k.cfg.MaxBytes,
		MaxWait:        k.cfg.MaxWait,
		StartOffset:    k.cfg.StartOffset,
		CommitInterval: 0,
		Dialer:         k.dialer,
		ErrorLogger:    k.errorLogger(),
	})
}

func (k *KafkaClient) errorLogger() kafka.LoggerFunc {
	return func(msg string, args ...interface{}) {
		k.logger.Error("Kafka internal error", nil, map[string]interface{}{
			"error": fmt.Sprintf(msg, args...),
		})
	}
}

func createWriter(cfg Config, dialer *kafka.Dialer, errLog kafka.LoggerFunc) *kafka.Writer {
	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: cfg.RequiredAcks,
		Dialer:       dialer,
		ErrorLogger:  errLog,
	}

	switch cfg.CompressionCodec {
	case "gzip":
		writerConfig.CompressionCodec = &compress.GzipCodec
	case "snappy":
		writerConfig.CompressionCodec = &compress.SnappyCodec
	case "lz4":
		writerConfig.CompressionCodec = &compress.Lz4Codec
	case "zstd":
		writerConfig.CompressionCodec = &compress.ZstdCodec
	}

	return kafka.NewWriter(writerConfig)
}

func createTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
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

func createSASLMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
