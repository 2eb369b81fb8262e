package vectordb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Upsert(ctx, SpaceUser, Record{Vector: []float32{1, 0}, Type: TypeHighlight, Owner: "alice"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, SpaceUser, Record{Vector: []float32{1, 0}, Type: TypeHighlight, Owner: "bob"})
	require.NoError(t, err)

	matches, err := m.Search(ctx, SpaceUser, SearchRequest{Vector: []float32{1, 0}, Owner: "alice", TopK: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].Owner)

	_, err = m.Search(ctx, SpaceUser, SearchRequest{Vector: []float32{1, 0}, TopK: 10})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestMemoryStoreThresholdAndTopK(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0.6, 0.8}, {0, 1}}
	for _, v := range vectors {
		_, err := m.Upsert(ctx, SpaceUser, Record{Vector: v, Type: TypeHighlight, Owner: "alice"})
		require.NoError(t, err)
	}

	matches, err := m.Search(ctx, SpaceUser, SearchRequest{Vector: []float32{1, 0}, Owner: "alice", TopK: 2, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.InDelta(t, 0.8, matches[1].Score, 1e-6)
	for _, match := range matches {
		assert.GreaterOrEqual(t, match.Score, float32(0.5))
	}
}

func TestMemoryStoreFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	old := time.Now().Add(-time.Hour)

	_, err := m.Upsert(ctx, SpaceUser, Record{Vector: []float32{1, 0}, Type: TypeGalaxy, Owner: "alice",
		Metadata: map[string]any{FieldClusterID: uint64(3)}})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, SpaceUser, Record{Vector: []float32{1, 0}, Type: TypeHighlight, Owner: "alice",
		Metadata: map[string]any{FieldFragmentID: int64(7)}, CreatedAt: old})
	require.NoError(t, err)

	galaxies, err := m.Search(ctx, SpaceUser, SearchRequest{
		Vector: []float32{1, 0}, Owner: "alice", TopK: 5,
		Filters: NewFilterSet(Must(NewMatch(FieldType, TypeGalaxy))),
	})
	require.NoError(t, err)
	require.Len(t, galaxies, 1)
	id, ok := galaxies[0].Uint(FieldClusterID)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), id)

	cutoff := time.Now().Add(-time.Minute)
	recent, err := m.Search(ctx, SpaceUser, SearchRequest{
		Vector: []float32{1, 0}, Owner: "alice", TopK: 5,
		Filters: NewFilterSet(Must(NewTimeRange(FieldCreatedAt, TimeRange{Gte: &cutoff}))),
	})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, TypeGalaxy, recent[0].Type)

	except, err := m.Search(ctx, SpaceUser, SearchRequest{
		Vector: []float32{1, 0}, Owner: "alice", TopK: 5,
		Filters: NewFilterSet(Must(NewMatchExcept(FieldType, TypeGalaxy, TypeDocument))),
	})
	require.NoError(t, err)
	require.Len(t, except, 1)
	assert.Equal(t, TypeHighlight, except[0].Type)
}

func TestMemoryStoreWriteRules(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Upsert(ctx, SpaceReference, Record{Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrReadOnlySpace)
	_, err = m.Upsert(ctx, SpaceGuest, Record{Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrOwnerRequired)
	assert.ErrorIs(t, m.Delete(ctx, SpaceReference, "alice", "x"), ErrReadOnlySpace)
	assert.Error(t, m.DeleteByFilter(ctx, SpaceUser, "alice", nil))

	m.Seed(SpaceReference, Record{Vector: []float32{1, 0}, Type: TypeDocument, Text: "shared"})
	matches, err := m.Search(ctx, SpaceReference, SearchRequest{Vector: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "shared", matches[0].Text)
}

func TestMemoryStoreDeleteByFilterIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for _, owner := range []string{"alice", "bob"} {
		_, err := m.Upsert(ctx, SpaceUser, Record{Vector: []float32{1, 0}, Type: TypeHighlight, Owner: owner,
			Metadata: map[string]any{FieldFragmentID: uint64(7)}})
		require.NoError(t, err)
	}

	err := m.DeleteByFilter(ctx, SpaceUser, "alice", NewFilterSet(Must(NewMatch(FieldFragmentID, uint64(7)))))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len(SpaceUser))
}

func TestMemoryStoreDeleteIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Upsert(ctx, SpaceGuest, Record{ID: "p1", Vector: []float32{1, 0}, Owner: "guest-a"})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Delete(ctx, SpaceGuest, "", "p1"), ErrOwnerRequired)
	require.NoError(t, m.Delete(ctx, SpaceGuest, "guest-b", "p1"))
	assert.Equal(t, 1, m.Len(SpaceGuest), "another owner cannot delete the point")

	require.NoError(t, m.Delete(ctx, SpaceGuest, "guest-a", "p1", "missing"))
	assert.Equal(t, 0, m.Len(SpaceGuest))
}

func TestMemoryStoreUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.Upsert(ctx, SpaceUser, Record{ID: "p1", Vector: []float32{1, 0}, Owner: "alice", Text: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	_, err = m.Upsert(ctx, SpaceUser, Record{ID: "p1", Vector: []float32{1, 0}, Owner: "alice", Text: "v2"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Len(SpaceUser))
}
