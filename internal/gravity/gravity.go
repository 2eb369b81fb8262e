// Package gravity links clusters and fragments by semantic similarity.
//
// Forward search runs when a cluster is created and looks for the owner's
// fragments close to the cluster name. Backward search runs when a fragment
// is created and looks for the owner's clusters close to its text. Matches
// whose ids no longer resolve to a live row are dropped.
package gravity

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/google/uuid"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Resolver returns the live subset of ids owned by owner.
type Resolver interface {
	ResolveFragments(ctx context.Context, owner string, ids []uint64) (map[uint64]model.Fragment, error)
	ResolveClusters(ctx context.Context, owner string, ids []uint64) (map[uint64]model.Cluster, error)
}

// Candidate is a proposed association.
type Candidate struct {
	ClusterID  uint64
	FragmentID uint64
	Score      float32
	Text       string
}

// Engine runs gravity searches and keeps the vectors they rely on.
type Engine struct {
	cfg      Config
	embedder Embedder
	index    vectordb.Store
	resolver Resolver
	logger   logger.Logger
}

// New returns an Engine. Zero policies take the defaults.
func New(cfg Config, embedder Embedder, index vectordb.Store, resolver Resolver, log logger.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg, embedder: embedder, index: index, resolver: resolver, logger: log}
}

// Forward returns the live fragments of the cluster owner that match the
// cluster name under the forward policy.
func (e *Engine) Forward(ctx context.Context, cluster model.Cluster) ([]Candidate, error) {
	vec, err := e.embedder.Embed(ctx, cluster.Name)
	if err != nil {
		return nil, fmt.Errorf("gravity: embed cluster %d: %w", cluster.ID, err)
	}

	candidates, err := e.searchFragments(ctx, cluster.OwnerID, vec, e.cfg.Forward)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].ClusterID = cluster.ID
	}
	return candidates, nil
}

// Term is an ad-hoc forward search for an arbitrary phrase.
func (e *Engine) Term(ctx context.Context, owner, term string) ([]Candidate, error) {
	vec, err := e.embedder.Embed(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("gravity: embed term: %w", err)
	}
	return e.searchFragments(ctx, owner, vec, e.cfg.Term)
}

// Backward returns the live clusters of the fragment owner that match the
// fragment text under the backward policy.
func (e *Engine) Backward(ctx context.Context, fragment model.Fragment) ([]Candidate, error) {
	vec, err := e.embedder.Embed(ctx, fragment.Content)
	if err != nil {
		return nil, fmt.Errorf("gravity: embed fragment %d: %w", fragment.ID, err)
	}
	return e.BackwardVector(ctx, fragment.OwnerID, fragment.ID, vec)
}

// BackwardVector is Backward for a fragment whose vector is already known.
func (e *Engine) BackwardVector(ctx context.Context, owner string, fragmentID uint64, vec []float32) ([]Candidate, error) {
	policy := e.cfg.Backward
	matches, err := e.search(ctx, owner, vec, policy, vectordb.NewMatch(vectordb.FieldType, vectordb.TypeGalaxy))
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if id, ok := m.Uint(vectordb.FieldClusterID); ok {
			ids = append(ids, id)
		}
	}
	live, err := e.resolver.ResolveClusters(ctx, owner, ids)
	if err != nil {
		return nil, fmt.Errorf("gravity: resolve clusters: %w", err)
	}

	seen := make(map[uint64]bool, len(matches))
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		id, ok := m.Uint(vectordb.FieldClusterID)
		if !ok || seen[id] {
			continue
		}
		c, ok := live[id]
		if !ok {
			e.zombie(ctx, m, "cluster")
			continue
		}
		seen[id] = true
		candidates = append(candidates, Candidate{
			ClusterID:  c.ID,
			FragmentID: fragmentID,
			Score:      m.Score,
			Text:       c.Name,
		})
	}
	return candidates, nil
}

func (e *Engine) searchFragments(ctx context.Context, owner string, vec []float32, policy Policy) ([]Candidate, error) {
	matches, err := e.search(ctx, owner, vec, policy,
		vectordb.NewMatchAny(vectordb.FieldType, vectordb.TypeHighlight, vectordb.TypeDocument))
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if id, ok := fragmentRef(m); ok {
			ids = append(ids, id)
		}
	}
	live, err := e.resolver.ResolveFragments(ctx, owner, ids)
	if err != nil {
		return nil, fmt.Errorf("gravity: resolve fragments: %w", err)
	}

	seen := make(map[uint64]bool, len(matches))
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		id, ok := fragmentRef(m)
		if !ok || seen[id] {
			continue
		}
		f, ok := live[id]
		if !ok {
			e.zombie(ctx, m, "fragment")
			continue
		}
		seen[id] = true
		candidates = append(candidates, Candidate{FragmentID: f.ID, Score: m.Score, Text: f.Content})
	}
	return candidates, nil
}

// search queries the user space. The result is re-checked against policy so
// the bounds hold whatever the index returns.
func (e *Engine) search(ctx context.Context, owner string, vec []float32, policy Policy, typeCond vectordb.FilterCondition) ([]vectordb.Match, error) {
	matches, err := e.index.Search(ctx, vectordb.SpaceUser, vectordb.SearchRequest{
		Vector:   vec,
		Owner:    owner,
		TopK:     policy.TopK,
		MinScore: policy.MinScore,
		Filters:  vectordb.NewFilterSet(vectordb.Must(typeCond)),
	})
	if err != nil {
		return nil, fmt.Errorf("gravity: search: %w", err)
	}
	return vectordb.Normalize(matches, policy.TopK, policy.MinScore), nil
}

// fragmentRef reads the fragment id of a match. Older records only carry dbId.
func fragmentRef(m vectordb.Match) (uint64, bool) {
	if id, ok := m.Uint(vectordb.FieldFragmentID); ok && id > 0 {
		return id, true
	}
	if id, ok := m.Uint(vectordb.FieldDBID); ok && id > 0 {
		return id, true
	}
	return 0, false
}

func (e *Engine) zombie(ctx context.Context, m vectordb.Match, kind string) {
	e.logger.DebugWithContext(ctx, "Dropping match without live row", nil, map[string]interface{}{
		"vector_id": m.ID,
		"kind":      kind,
		"score":     m.Score,
	})
}

func pointID(kind, owner string, id interface{}) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("gravity/%s/%s/%v", kind, owner, id))).String()
}
