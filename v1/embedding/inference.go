package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// InferenceProvider talks to an OpenAI-compatible HTTP API.
type InferenceProvider struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func newInferenceProvider(cfg *Config) (*InferenceProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("inference: missing EMBEDDING_ENDPOINT")
	}
	return &InferenceProvider{
		baseURL:      strings.TrimRight(cfg.Endpoint, "/"),
		serviceToken: cfg.ServiceToken,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutS) * time.Second},
	}, nil
}

// Create calls POST {base}/embeddings.
func (p *InferenceProvider) Create(ctx context.Context, model string, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", ErrPermanent)
	}

	reqBody := map[string]any{
		"model": model,
		"input": texts,
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	if err := p.postJSON(ctx, p.baseURL+"/embeddings", reqBody, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings response has %d items for %d inputs", ErrPermanent, len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrPermanent, d.Index)
		}
		if out[d.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate embedding index %d", ErrPermanent, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", ErrPermanent, i)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Complete calls POST {base}/chat/completions with a system and a user message.
func (p *InferenceProvider) Complete(ctx context.Context, model, systemPrompt, userText string) (string, error) {
	reqBody := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userText},
		},
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := p.postJSON(ctx, p.baseURL+"/chat/completions", reqBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: completion response has no choices", ErrPermanent)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Close drops idle keep-alive connections.
func (p *InferenceProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
