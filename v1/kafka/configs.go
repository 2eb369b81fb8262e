package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Defaults applied by NewClient for zero-valued fields.
const (
	DefaultMinBytes           = 1
	DefaultMaxBytes           = 10e6
	DefaultMaxWait            = 500 * time.Millisecond
	DefaultStartOffset        = kafka.FirstOffset
	DefaultRequiredAcks       = int(kafka.RequireAll)
	DefaultMaxAttempts        = 10
	DefaultWriteTimeout       = 10 * time.Second
	DefaultWorkers            = 1
	DefaultMaxHandlerAttempts = 3
	DefaultHandlerBackoff     = time.Second
	DefaultDLQSuffix          = ".dlq"
)

// Config holds broker, producer and consumer settings.
type Config struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS"`

	// GroupID is the consumer group shared by every topic reader.
	GroupID string `yaml:"group_id" env:"KAFKA_GROUP_ID"`

	// Consumer tuning.
	MinBytes    int           `yaml:"min_bytes"`
	MaxBytes    int           `yaml:"max_bytes"`
	MaxWait     time.Duration `yaml:"max_wait"`
	StartOffset int64         `yaml:"start_offset"`

	// Producer tuning.
	RequiredAcks     int           `yaml:"required_acks"`
	MaxAttempts      int           `yaml:"max_attempts"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	CompressionCodec string        `yaml:"compression_codec"`

	// Workers is the number of readers per topic. Readers of one topic share
	// the group and split its partitions between them.
	Workers int `yaml:"workers" env:"KAFKA_WORKERS"`

	// MaxHandlerAttempts bounds how often a handler is invoked for one
	// message before it is sent to the dead-letter topic.
	MaxHandlerAttempts int           `yaml:"max_handler_attempts"`
	HandlerBackoff     time.Duration `yaml:"handler_backoff"`

	// DLQSuffix is appended to the source topic to build the dead-letter topic.
	DLQSuffix string `yaml:"dlq_suffix"`

	TLS  TLSConfig  `yaml:"tls"`
	SASL SASLConfig `yaml:"sasl"`
}

// TLSConfig enables TLS towards the brokers.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" env:"KAFKA_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path"`
	ClientCertPath     string `yaml:"client_cert_path"`
	ClientKeyPath      string `yaml:"client_key_path"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SASLConfig enables SASL authentication.
// Mechanism is one of PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
type SASLConfig struct {
	Enabled   bool   `yaml:"enabled" env:"KAFKA_SASL_ENABLED"`
	Mechanism string `yaml:"mechanism" env:"KAFKA_SASL_MECHANISM"`
	Username  string `yaml:"username" env:"KAFKA_SASL_USERNAME"`
	Password  string `yaml:"-" env:"KAFKA_SASL_PASSWORD"`
}

func (c *Config) applyDefaults() {
	if c.MinBytes == 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.StartOffset == 0 {
		c.StartOffset = DefaultStartOffset
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = DefaultRequiredAcks
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxHandlerAttempts <= 0 {
		c.MaxHandlerAttempts = DefaultMaxHandlerAttempts
	}
	if c.HandlerBackoff <= 0 {
		c.HandlerBackoff = DefaultHandlerBackoff
	}
	if c.DLQSuffix == "" {
		c.DLQSuffix = DefaultDLQSuffix
	}
}
