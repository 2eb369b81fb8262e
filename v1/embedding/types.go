package embedding

import (
	"context"
	"errors"
)

// Provider is the inference backend behind Client.
type Provider interface {
	// Create returns one embedding per input text, in input order.
	Create(ctx context.Context, model string, texts ...string) ([][]float32, error)

	// Complete runs a single-turn chat completion and returns the assistant text.
	Complete(ctx context.Context, model, systemPrompt, userText string) (string, error)
}

// Error classes. Every error returned by the provider wraps exactly one of them.
var (
	// ErrTransient covers timeouts, transport failures, 429 and 5xx responses.
	// Callers may retry.
	ErrTransient = errors.New("embedding: transient failure")

	// ErrPermanent covers other non-2xx responses and malformed bodies.
	// Retrying will not help.
	ErrPermanent = errors.New("embedding: permanent failure")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }
