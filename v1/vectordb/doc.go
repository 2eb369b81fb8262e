// Package vectordb defines the database-agnostic vector index used by the
// gravity engine.
//
// A single Store interface serves all three vector spaces. The caller picks
// the space explicitly on every call:
//
//	SpaceUser       durable per-user vectors (fragments, clusters, documents)
//	SpaceGuest      ephemeral vectors for guest sessions
//	SpaceReference  shared read-only corpus
//
// Owner scoping is enforced by the implementation. Searches and writes against
// the user or guest space without an owner fail with ErrOwnerRequired, and the
// owner condition is always injected by the store rather than trusted from the
// caller's filter set.
//
// Search results honour three guarantees regardless of backend: at most TopK
// matches, every score at or above MinScore, descending score with ties
// broken by newer CreatedAt first and then by ID. Use Normalize to apply them
// to raw backend results.
//
// Filters are expressed with Must / Should / MustNot condition sets:
//
//	filters := vectordb.NewFilterSet(
//	    vectordb.Must(vectordb.NewMatchAny(vectordb.FieldType, vectordb.TypeHighlight, vectordb.TypeDocument)),
//	)
package vectordb
