// Package qdrant implements vectordb.Store on top of the official Qdrant Go
// client.
//
// Each vectordb.Space maps to its own collection (see Config). Owner-scoped
// spaces get an ownerId match injected into every filter, ScoreThreshold is
// pushed down to Qdrant and re-checked on the returned points, and writes use
// Wait=true so a point is searchable when Upsert returns.
//
// Basic usage:
//
//	client, err := qdrant.NewQdrantClient(qdrant.QdrantParams{Config: cfg, Logger: log})
//	if err != nil {
//	    return err
//	}
//	if err := client.EnsureCollections(ctx); err != nil {
//	    return err
//	}
//
//	matches, err := client.Search(ctx, vectordb.SpaceUser, vectordb.SearchRequest{
//	    Vector:   vec,
//	    Owner:    "alice",
//	    TopK:     5,
//	    MinScore: 0.35,
//	    Filters:  vectordb.NewFilterSet(vectordb.Must(vectordb.NewMatch(vectordb.FieldType, vectordb.TypeGalaxy))),
//	})
//
// With fx, include FXModule and supply a *Config.
package qdrant
