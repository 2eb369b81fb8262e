package embedding

import (
	"context"
	"fmt"
)

// Client is the application entry point for embeddings and chat completions.
// It hides the HTTP details of the inference service.
type Client struct {
	provider  Provider
	model     string
	chatModel string
	dimension int
}

// NewClient validates cfg and builds the HTTP inference provider.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedding: invalid config: %w", err)
	}
	cfg.applyDefaults()

	p, err := newInferenceProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to create provider: %w", err)
	}
	return NewClientWithProvider(p, cfg), nil
}

// NewClientWithProvider wires an arbitrary provider, mainly for tests.
func NewClientWithProvider(p Provider, cfg *Config) *Client {
	cfg.applyDefaults()
	return &Client{
		provider:  p,
		model:     cfg.Model,
		chatModel: cfg.ChatModel,
		dimension: cfg.Dimension,
	}
}

// Dimension is the vector size produced by the configured model.
func (c *Client) Dimension() int { return c.dimension }

// Embed turns one text into a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings embeds several texts in one request.
func (c *Client) CreateEmbeddings(ctx context.Context, texts ...string) ([][]float32, error) {
	vectors, err := c.provider.Create(ctx, c.model, texts...)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrPermanent, len(texts), len(vectors))
	}
	return vectors, nil
}

// Complete asks the chat model to answer userText under systemPrompt.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	return c.provider.Complete(ctx, c.chatModel, systemPrompt, userText)
}

// Close releases provider resources when the provider supports it.
func (c *Client) Close() error {
	if closer, ok := c.provider.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
