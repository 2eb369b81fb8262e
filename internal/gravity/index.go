package gravity

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
)

// Indexed is the outcome of writing a vector.
type Indexed struct {
	VectorID string
	Vector   []float32
}

// RegisterCluster mirrors the cluster name into the user space so backward
// searches can find it. The point id is derived from the cluster, so calling
// it again overwrites the same point.
func (e *Engine) RegisterCluster(ctx context.Context, cluster model.Cluster) (string, error) {
	vec, err := e.embedder.Embed(ctx, cluster.Name)
	if err != nil {
		return "", fmt.Errorf("gravity: embed cluster %d: %w", cluster.ID, err)
	}

	id, err := e.index.Upsert(ctx, vectordb.SpaceUser, vectordb.Record{
		ID:     pointID("cluster", cluster.OwnerID, cluster.ID),
		Vector: vec,
		Text:   cluster.Name,
		Type:   vectordb.TypeGalaxy,
		Owner:  cluster.OwnerID,
		Metadata: map[string]any{
			vectordb.FieldClusterID: cluster.ID,
			vectordb.FieldName:      cluster.Name,
		},
		CreatedAt: cluster.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("gravity: register cluster %d: %w", cluster.ID, err)
	}
	return id, nil
}

// IndexFragment embeds the fragment and writes it into space. Redelivery
// overwrites the same point.
func (e *Engine) IndexFragment(ctx context.Context, f model.Fragment, space vectordb.Space) (Indexed, error) {
	vec, err := e.embedder.Embed(ctx, f.Content)
	if err != nil {
		return Indexed{}, fmt.Errorf("gravity: embed fragment %d: %w", f.ID, err)
	}

	recordType := vectordb.TypeHighlight
	if f.Kind == model.KindSummary {
		recordType = vectordb.TypeResume
	}
	metadata := map[string]any{vectordb.FieldFragmentID: f.ID}
	if f.SourceFingerprint != "" {
		metadata[vectordb.FieldDocument] = f.SourceFingerprint
	}

	id, err := e.index.Upsert(ctx, space, vectordb.Record{
		ID:        pointID("fragment", f.OwnerID, f.ID),
		Vector:    vec,
		Text:      f.Content,
		Type:      recordType,
		Owner:     f.OwnerID,
		Metadata:  metadata,
		CreatedAt: f.CreatedAt,
	})
	if err != nil {
		return Indexed{}, fmt.Errorf("gravity: index fragment %d: %w", f.ID, err)
	}
	return Indexed{VectorID: id, Vector: vec}, nil
}

// IndexDocument writes the analysis text of an uploaded document.
func (e *Engine) IndexDocument(ctx context.Context, owner, fingerprint, name, text string) (string, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("gravity: embed document %s: %w", fingerprint, err)
	}

	id, err := e.index.Upsert(ctx, vectordb.SpaceUser, vectordb.Record{
		ID:     pointID("document", owner, fingerprint),
		Vector: vec,
		Text:   text,
		Type:   vectordb.TypeDocument,
		Owner:  owner,
		Metadata: map[string]any{
			vectordb.FieldDocument: fingerprint,
			vectordb.FieldName:     name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("gravity: index document %s: %w", fingerprint, err)
	}
	return id, nil
}

// RemoveCluster deletes the cluster's name vector.
func (e *Engine) RemoveCluster(ctx context.Context, owner string, clusterID uint64) error {
	err := e.index.DeleteByFilter(ctx, vectordb.SpaceUser, owner, vectordb.NewFilterSet(vectordb.Must(
		vectordb.NewMatch(vectordb.FieldType, vectordb.TypeGalaxy),
		vectordb.NewMatch(vectordb.FieldClusterID, clusterID),
	)))
	if err != nil {
		return fmt.Errorf("gravity: remove cluster %d: %w", clusterID, err)
	}
	return nil
}

// RemoveFragment deletes the vectors of a fragment from space.
func (e *Engine) RemoveFragment(ctx context.Context, owner string, fragmentID uint64, space vectordb.Space) error {
	err := e.index.DeleteByFilter(ctx, space, owner, vectordb.NewFilterSet(vectordb.Must(
		vectordb.NewMatchAny(vectordb.FieldType, vectordb.TypeHighlight, vectordb.TypeResume),
		vectordb.NewMatch(vectordb.FieldFragmentID, fragmentID),
	)))
	if err != nil {
		return fmt.Errorf("gravity: remove fragment %d: %w", fragmentID, err)
	}
	return nil
}
