package qdrant

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
)

var _ vectordb.Store = (*QdrantClient)(nil)

// EnsureCollections creates the collection of every space that does not
// exist yet. Safe to call on every start.
func (c *QdrantClient) EnsureCollections(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	existing, err := c.api.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("qdrant: failed to list collections: %w", err)
	}

	for _, space := range vectordb.Spaces {
		name := c.cfg.Collection(space)
		if slices.Contains(existing, name) {
			continue
		}

		c.logger.Info("Creating Qdrant collection", nil, map[string]interface{}{
			"collection": name,
			"space":      string(space),
			"dimension":  c.cfg.Dimension,
		})

		err := c.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.cfg.Dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection '%s': %w", name, err)
		}
	}
	return nil
}

// Upsert writes rec into space with Wait=true.
func (c *QdrantClient) Upsert(ctx context.Context, space vectordb.Space, rec vectordb.Record) (id string, err error) {
	if err := checkWrite(space, rec.Owner); err != nil {
		return "", err
	}
	if len(rec.Vector) == 0 {
		return "", fmt.Errorf("qdrant: vector cannot be empty")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}

	payload, err := qdrant.TryValueMap(recordPayload(rec))
	if err != nil {
		return "", fmt.Errorf("qdrant: invalid payload: %w", err)
	}

	collection := c.cfg.Collection(space)
	start := time.Now()
	defer func() { c.observe("upsert", collection, start, err, 1) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	wait := true
	_, err = c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("qdrant: upsert into '%s' failed: %w", collection, err)
	}
	return rec.ID, nil
}

// Search runs a filtered similarity query. The owner condition is added here
// for owner-scoped spaces; results are re-checked against MinScore and TopK.
func (c *QdrantClient) Search(ctx context.Context, space vectordb.Space, req vectordb.SearchRequest) (matches []vectordb.Match, err error) {
	if err := req.Validate(space); err != nil {
		return nil, err
	}

	filters := req.Filters
	if space.OwnerScoped() {
		filters = vectordb.WithOwner(filters, req.Owner)
	}

	collection := c.cfg.Collection(space)
	start := time.Now()
	defer func() { c.observe("search", collection, start, err, len(matches)) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	limit := uint64(req.TopK)
	threshold := req.MinScore
	resp, err := c.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		Filter:         convertFilterSet(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in '%s' failed: %w", collection, err)
	}

	matches, err = parseScoredPoints(resp)
	if err != nil {
		return nil, err
	}
	return vectordb.Normalize(matches, req.TopK, req.MinScore), nil
}

// Delete removes owner's points by id. The ids are combined with the owner
// condition, so points of other owners are never touched.
func (c *QdrantClient) Delete(ctx context.Context, space vectordb.Space, owner string, ids ...string) (err error) {
	if err := checkWrite(space, owner); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	return c.delete(ctx, space, &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewHasID(pointIDs...),
					qdrant.NewMatch(vectordb.FieldOwner, owner),
				},
			},
		},
	}, len(ids))
}

// DeleteByFilter removes the owner's points matching filters. An empty filter
// set is refused so a caller can never wipe a whole owner by accident.
func (c *QdrantClient) DeleteByFilter(ctx context.Context, space vectordb.Space, owner string, filters *vectordb.FilterSet) error {
	if err := checkWrite(space, owner); err != nil {
		return err
	}
	if filters.Empty() {
		return fmt.Errorf("qdrant: delete by filter requires at least one condition")
	}

	return c.delete(ctx, space, &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
			Filter: convertFilterSet(vectordb.WithOwner(filters, owner)),
		},
	}, 0)
}

func (c *QdrantClient) delete(ctx context.Context, space vectordb.Space, selector *qdrant.PointsSelector, size int) (err error) {
	collection := c.cfg.Collection(space)
	start := time.Now()
	defer func() { c.observe("delete", collection, start, err, size) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	wait := true
	if _, err = c.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         selector,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("qdrant: delete in '%s' failed: %w", collection, err)
	}
	return nil
}

func checkWrite(space vectordb.Space, owner string) error {
	if err := space.Validate(); err != nil {
		return err
	}
	if !space.Writable() {
		return vectordb.ErrReadOnlySpace
	}
	if owner == "" {
		return vectordb.ErrOwnerRequired
	}
	return nil
}
