package processor

import (
	"context"

	"github.com/Aleph-Alpha/gravity/v1/breaker"
)

// Inference is the raw embedding and completion backend.
type Inference interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Gateway guards Inference with the shared breaker and retry.
type Gateway struct {
	inference Inference
	breaker   *breaker.Breaker
	retry     Retry
}

// NewGateway returns a Gateway over inference.
func NewGateway(cfg Config, inference Inference, b *breaker.Breaker) *Gateway {
	cfg.applyDefaults()
	return &Gateway{
		inference: inference,
		breaker:   b,
		retry:     NewRetry(cfg.RetryAttempts, cfg.RetryBackoff),
	}
}

// Embed returns the embedding of text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.call(ctx, func(ctx context.Context) error {
		v, err := g.inference.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

// Complete runs a chat completion.
func (g *Gateway) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	var out string
	err := g.call(ctx, func(ctx context.Context) error {
		s, err := g.inference.Complete(ctx, systemPrompt, userText)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

func (g *Gateway) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.retry.Do(ctx, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, fn)
	})
}
