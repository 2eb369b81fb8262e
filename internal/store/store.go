// Package store is the relational side of the engine: fragments, clusters,
// associations, profiles and document analyses, all returned as plain structs.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm/clause"
)

// ErrClusterNameTaken is returned when the owner already has a cluster with
// the same name, compared case-insensitively.
var ErrClusterNameTaken = errors.New("store: cluster name already taken")

// ErrOwnerMismatch is returned by LinkFragment when the cluster and the
// fragment belong to different owners.
var ErrOwnerMismatch = errors.New("store: cluster and fragment owners differ")

// lockForUpdate is the row lock the delete paths take before removing a row,
// so they serialise with LinkFragment's share locks.
var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// Store implements the repositories on top of a gorm connection.
type Store struct {
	pg     *postgres.Postgres
	logger logger.Logger
}

// New returns a Store. Call Migrate once before use.
func New(pg *postgres.Postgres, log logger.Logger) *Store {
	return &Store{pg: pg, logger: log}
}

// Migrate creates or updates the tables and indexes.
func (s *Store) Migrate() error {
	if err := s.pg.Migrate(model.All()...); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// FXModule provides *Store and migrates on start.
var FXModule = fx.Module("store",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return s.Migrate() },
		})
	}),
)
