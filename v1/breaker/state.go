package breaker

import "time"

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Clock abstracts time so tests can move the cooldown forward.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Counts is a snapshot of the breaker counters.
type Counts struct {
	State               State
	ConsecutiveFailures int
	TotalFailures       int64
	TotalRejected       int64
	OpenedAt            time.Time
}
