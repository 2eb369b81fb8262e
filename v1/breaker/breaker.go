package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
)

// ErrOpen is returned without calling the protected function while the breaker
// is OPEN, or while a HALF_OPEN trial is already in flight.
var ErrOpen = errors.New("breaker: circuit open")

// Breaker is an explicit CLOSED / OPEN / HALF_OPEN state machine around a
// fallible call.
//
//	CLOSED    --N consecutive failures-->  OPEN
//	OPEN      --cooldown elapsed-------->  HALF_OPEN (one trial call)
//	HALF_OPEN --trial succeeds---------->  CLOSED
//	HALF_OPEN --trial fails------------->  OPEN
//
// A Breaker is safe for concurrent use.
type Breaker struct {
	cfg      Config
	clock    Clock
	observer observability.Observer
	onChange func(name string, from, to State)

	mu            sync.Mutex
	state         State
	generation    uint64
	consecutive   int
	openedAt      time.Time
	trialInFlight bool
	totalFailures int64
	totalRejected int64
}

// Option customises a Breaker.
type Option func(*Breaker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// WithObserver reports every call and rejection.
func WithObserver(o observability.Observer) Option {
	return func(b *Breaker) { b.observer = o }
}

// WithStateChangeHook is invoked synchronously on each transition, outside the lock.
func WithStateChangeHook(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// New returns a CLOSED breaker.
func New(cfg Config, opts ...Option) *Breaker {
	cfg.applyDefaults()
	b := &Breaker{
		cfg:      cfg,
		clock:    systemClock{},
		observer: observability.NoopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state, promoting OPEN to HALF_OPEN for reporting
// purposes only when the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Counts returns a snapshot of the counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		State:               b.state,
		ConsecutiveFailures: b.consecutive,
		TotalFailures:       b.totalFailures,
		TotalRejected:       b.totalRejected,
		OpenedAt:            b.openedAt,
	}
}

// Execute runs fn under the breaker with the configured call timeout.
//
// When the breaker rejects the call fn is not invoked and ErrOpen is returned.
// Otherwise fn's error is returned unchanged, except that a call which ran
// past its deadline reports context.DeadlineExceeded even if fn returned nil.
// Cancellation of the caller's own context is neither a success nor a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := b.allow()
	if err != nil {
		b.observer.ObserveOperation(observability.OperationContext{
			Component: "breaker",
			Operation: "reject",
			Resource:  b.cfg.Name,
			Error:     err,
		})
		return err
	}

	start := b.clock.Now()
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	callErr := fn(callCtx)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	if callErr == nil && timedOut {
		callErr = context.DeadlineExceeded
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		b.release(generation)
	case b.cfg.IsSuccessful(callErr):
		b.onSuccess(generation)
	default:
		b.onFailure(generation)
	}

	b.observer.ObserveOperation(observability.OperationContext{
		Component: "breaker",
		Operation: "execute",
		Resource:  b.cfg.Name,
		Duration:  b.clock.Now().Sub(start),
		Error:     callErr,
	})
	return callErr
}

// allow decides whether a call may proceed and returns the generation it belongs to.
func (b *Breaker) allow() (uint64, error) {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.totalRejected++
			b.mu.Unlock()
			return 0, ErrOpen
		}
		from := b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		generation := b.generation
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return generation, nil

	case StateHalfOpen:
		if b.trialInFlight {
			b.totalRejected++
			b.mu.Unlock()
			return 0, ErrOpen
		}
		b.trialInFlight = true
	}

	generation := b.generation
	b.mu.Unlock()
	return generation, nil
}

func (b *Breaker) onSuccess(generation uint64) {
	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return
	}

	b.consecutive = 0
	if b.state != StateHalfOpen {
		b.mu.Unlock()
		return
	}
	b.trialInFlight = false
	from := b.transitionLocked(StateClosed)
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) onFailure(generation uint64) {
	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return
	}

	b.totalFailures++
	b.consecutive++

	if b.state == StateClosed && b.consecutive < b.cfg.FailureThreshold {
		b.mu.Unlock()
		return
	}

	b.trialInFlight = false
	b.openedAt = b.clock.Now()
	from := b.transitionLocked(StateOpen)
	b.mu.Unlock()
	b.notify(from, StateOpen)
}

// release frees a HALF_OPEN trial slot without judging the dependency.
func (b *Breaker) release(generation uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if generation == b.generation && b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

func (b *Breaker) transitionLocked(to State) State {
	from := b.state
	b.state = to
	b.generation++
	if to == StateClosed {
		b.consecutive = 0
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.onChange != nil && from != to {
		b.onChange(b.cfg.Name, from, to)
	}
}
