package gravity

import (
	"context"
	"errors"
	"testing"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downResolver struct{}

func (downResolver) ResolveFragments(context.Context, string, []uint64) (map[uint64]model.Fragment, error) {
	return nil, errors.New("connection refused")
}

func (downResolver) ResolveClusters(context.Context, string, []uint64) (map[uint64]model.Cluster, error) {
	return nil, errors.New("connection refused")
}

func TestSuggestUsesLowFloorAndCallerTopK(t *testing.T) {
	f := newFixture(t, Config{})
	for _, score := range []float64{0.9, 0.7, 0.5, 0.3, 0.2} {
		f.fragment(t, "alice", score)
	}
	f.fragment(t, "bob", 0.95)
	f.cluster(t, "alice", "Architecture", []float32{1, 0})
	f.embed["draft paragraph"] = []float32{1, 0}

	suggestions, err := f.engine.Suggest(f.ctx, "alice", "draft paragraph", 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 4, "everything at or above 0.25, clusters excluded")
	for _, s := range suggestions {
		assert.GreaterOrEqual(t, s.Score, float32(0.25))
		assert.NotZero(t, s.FragmentID)
		assert.Equal(t, vectordb.TypeHighlight, s.Type)
	}

	top, err := f.engine.Suggest(f.ctx, "alice", "draft paragraph", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.InDelta(t, 0.9, top[0].Score, 1e-4)
	assert.InDelta(t, 0.7, top[1].Score, 1e-4)
}

func TestSuggestCapsTopK(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < MaxSuggestions+5; i++ {
		f.fragment(t, "alice", 0.5+float64(i)*0.005)
	}
	f.embed["draft"] = []float32{1, 0}

	suggestions, err := f.engine.Suggest(f.ctx, "alice", "draft", 1000)
	require.NoError(t, err)
	assert.Len(t, suggestions, MaxSuggestions)
}

func TestSuggestPrefersLiveContent(t *testing.T) {
	f := newFixture(t, Config{})
	fr := f.fragment(t, "alice", 0.8)
	require.NoError(t, f.store.SetFragmentContent(f.ctx, fr.ID, "edited since indexing"))
	f.embed["draft"] = []float32{1, 0}

	suggestions, err := f.engine.Suggest(f.ctx, "alice", "draft", 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, fr.ID, suggestions[0].FragmentID)
	assert.Equal(t, "edited since indexing", suggestions[0].Text)
}

func TestSuggestFallsBackToPayloadText(t *testing.T) {
	index := vectordb.NewMemoryStore()
	embed := mapEmbedder{"draft": {1, 0}}
	engine := New(Config{}, embed, index, downResolver{}, logger.NewNop())

	index.Seed(vectordb.SpaceUser,
		vectordb.Record{ID: "a", Vector: []float32{1, 0}, Type: vectordb.TypeHighlight, Owner: "alice",
			Text: "from the payload", Metadata: map[string]any{vectordb.FieldFragmentID: uint64(7)}},
		vectordb.Record{ID: "b", Vector: unit(0.6), Type: vectordb.TypeResume, Owner: "alice",
			Metadata: map[string]any{vectordb.FieldDBID: uint64(8)}},
		vectordb.Record{ID: "c", Vector: unit(0.5), Type: vectordb.TypeDocument, Owner: "alice",
			Text: "analysis", Metadata: map[string]any{vectordb.FieldDocument: "abc123"}},
	)

	suggestions, err := engine.Suggest(context.Background(), "alice", "draft", 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)

	assert.Equal(t, uint64(7), suggestions[0].FragmentID)
	assert.Equal(t, "from the payload", suggestions[0].Text)
	assert.Equal(t, uint64(8), suggestions[1].FragmentID)
	assert.Equal(t, vectordb.TypeResume, suggestions[1].Type)
	assert.Equal(t, PendingText, suggestions[1].Text)
	assert.Zero(t, suggestions[2].FragmentID)
	assert.Equal(t, "abc123", suggestions[2].Document)
	assert.Equal(t, "analysis", suggestions[2].Text)
}
