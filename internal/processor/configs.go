package processor

import (
	"time"

	"github.com/Aleph-Alpha/gravity/v1/breaker"
)

const (
	DefaultSuccessTTL       = 24 * time.Hour
	DefaultPlaceholderTTL   = 5 * time.Minute
	DefaultRetryAttempts    = 3
	DefaultRetryBackoff     = time.Second
	DefaultMaxAnalysisChars = 2000

	// CacheKeyPrefix namespaces processing cache entries.
	CacheKeyPrefix = "doc_analysis:"
)

// Config controls caching and retry. Breaker configures the circuit breaker
// shared by the processor and the gateway.
type Config struct {
	SuccessTTL       time.Duration  `yaml:"success_ttl"`
	PlaceholderTTL   time.Duration  `yaml:"placeholder_ttl"`
	RetryAttempts    int            `yaml:"retry_attempts" env:"PROCESSOR_RETRY_ATTEMPTS"`
	RetryBackoff     time.Duration  `yaml:"retry_backoff" env:"PROCESSOR_RETRY_BACKOFF"`
	MaxAnalysisChars int            `yaml:"max_analysis_chars"`
	Breaker          breaker.Config `yaml:"breaker"`
}

func (c *Config) applyDefaults() {
	if c.SuccessTTL <= 0 {
		c.SuccessTTL = DefaultSuccessTTL
	}
	if c.PlaceholderTTL <= 0 {
		c.PlaceholderTTL = DefaultPlaceholderTTL
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	} else if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MaxAnalysisChars <= 0 {
		c.MaxAnalysisChars = DefaultMaxAnalysisChars
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = "inference"
	}
}

// CacheKey returns the processing cache key of fingerprint.
func CacheKey(fingerprint string) string {
	return CacheKeyPrefix + fingerprint
}
