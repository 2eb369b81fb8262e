package vectordb

import "context"

// Store is the vector index shared by all spaces.
type Store interface {
	// Upsert writes rec into space and returns the point id.
	Upsert(ctx context.Context, space Space, rec Record) (string, error)

	// Search returns matches honouring TopK, MinScore and the tie order.
	Search(ctx context.Context, space Space, req SearchRequest) ([]Match, error)

	// Delete removes owner's points by id. Missing ids and ids owned by
	// someone else are not an error; they are left untouched.
	Delete(ctx context.Context, space Space, owner string, ids ...string) error

	// DeleteByFilter removes every point of owner matching filters.
	DeleteByFilter(ctx context.Context, space Space, owner string, filters *FilterSet) error
}
