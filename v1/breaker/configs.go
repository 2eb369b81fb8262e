package breaker

import "time"

// Default values applied by New for zero Config fields.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
	DefaultCallTimeout      = 10 * time.Second
)

// Config controls when the breaker opens and how long it stays open.
type Config struct {
	// Name identifies the breaker in logs and metrics, e.g. "inference".
	Name string `yaml:"name"`

	// FailureThreshold is the number of consecutive failures (timeouts included)
	// that opens the breaker.
	FailureThreshold int `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD"`

	// Cooldown is how long the breaker stays OPEN before allowing a single
	// HALF_OPEN trial call.
	Cooldown time.Duration `yaml:"cooldown" env:"BREAKER_COOLDOWN"`

	// CallTimeout is the hard deadline applied to every protected call.
	CallTimeout time.Duration `yaml:"call_timeout" env:"BREAKER_CALL_TIMEOUT"`

	// IsSuccessful decides whether an error counts against the breaker.
	// Nil means only a nil error is a success. Use it to keep caller mistakes
	// (4xx, validation) from tripping the breaker.
	IsSuccessful func(err error) bool `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.IsSuccessful == nil {
		c.IsSuccessful = func(err error) bool { return err == nil }
	}
}
