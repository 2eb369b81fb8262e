package processor

import (
	"context"
	"errors"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/breaker"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/cenkalti/backoff/v4"
)

// Retry repeats a call a fixed number of times with a fixed pause. Permanent
// failures, an open breaker and cancellation of the caller's context end it
// early.
type Retry struct {
	Attempts int
	Backoff  time.Duration

	// newTimer replaces the wall-clock timer between attempts. Nil uses the
	// backoff package default.
	newTimer func() backoff.Timer
}

// NewRetry returns a Retry making at most attempts calls.
func NewRetry(attempts int, pause time.Duration) Retry {
	if attempts < 1 {
		attempts = 1
	}
	return Retry{Attempts: attempts, Backoff: pause}
}

// Do calls fn until it succeeds, fails in a way that is not retryable, or the
// attempts are used up. It returns the last error of fn.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.Backoff), uint64(attempts-1)),
		ctx,
	)

	var last error
	err := backoff.RetryNotifyWithTimer(func() error {
		last = fn(ctx)
		if last != nil && !Retryable(ctx, last) {
			return backoff.Permanent(last)
		}
		return last
	}, policy, nil, r.timer())
	if err != nil && last != nil {
		return last
	}
	return err
}

func (r Retry) timer() backoff.Timer {
	if r.newTimer == nil {
		return nil
	}
	return r.newTimer()
}

// Retryable reports whether another attempt at a call that failed with err
// could succeed.
func Retryable(ctx context.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case ctx.Err() != nil:
		return false
	case embedding.IsPermanent(err):
		return false
	case errors.Is(err, breaker.ErrOpen):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
