package processor

import (
	"context"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/breaker"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInference struct {
	embedCalls int
	err        error
}

func (f *fakeInference) Embed(context.Context, string) ([]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeInference) Complete(context.Context, string, string) (string, error) {
	return "ok", f.err
}

func TestGatewayEmbed(t *testing.T) {
	inf := &fakeInference{}
	g := NewGateway(Config{}, inf, breaker.New(breaker.Config{Name: "inference"}))

	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	out, err := g.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGatewaySharesBreakerWithProcessor(t *testing.T) {
	b := breaker.New(breaker.Config{Name: "inference", FailureThreshold: 2, Cooldown: time.Minute})
	inf := &fakeInference{err: embedding.ErrTransient}
	g := NewGateway(Config{RetryAttempts: 1}, inf, b)

	for i := 0; i < 2; i++ {
		_, err := g.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, embedding.ErrTransient)
	}

	_, err := g.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, 2, inf.embedCalls)

	analyzed := false
	p := New(Config{RetryAttempts: 1}, newFakeCache(), b, func(context.Context, Payload) (Analysis, error) {
		analyzed = true
		return Analysis{}, nil
	}, logger.NewNop())

	res, err := p.Process(context.Background(), "fp", Payload{Text: "x"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.False(t, analyzed)
}
