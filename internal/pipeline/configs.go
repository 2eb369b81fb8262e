package pipeline

import "time"

// Defaults for the visibility retry. A fragment.created event can arrive
// before the transaction that inserted the row is visible to this reader.
const (
	DefaultVisibilityAttempts = 6
	DefaultVisibilityDelay    = 500 * time.Millisecond
)

// Config tunes the ingestion handlers.
type Config struct {
	VisibilityAttempts int           `yaml:"visibility_attempts"`
	VisibilityDelay    time.Duration `yaml:"visibility_delay"`
}

func (c *Config) applyDefaults() {
	if c.VisibilityAttempts <= 0 {
		c.VisibilityAttempts = DefaultVisibilityAttempts
	}
	if c.VisibilityDelay < 0 {
		c.VisibilityDelay = 0
	} else if c.VisibilityDelay == 0 {
		c.VisibilityDelay = DefaultVisibilityDelay
	}
}
