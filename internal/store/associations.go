package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertAssociation stores (ClusterID, FragmentID) with a.Score. An existing
// pair keeps its row and takes the new score. On return a holds the stored row.
func (s *Store) UpsertAssociation(ctx context.Context, a *model.Association) error {
	return upsertAssociation(s.pg.WithContext(ctx), a)
}

// LinkFragment upserts a like UpsertAssociation, but only while both the
// cluster and the fragment exist and share an owner. Both rows are read
// FOR SHARE in the same transaction, so a concurrent DeleteCluster or
// DeleteFragment either waits for the link to commit and removes it, or
// commits first and the link fails with postgres.ErrRecordNotFound.
func (s *Store) LinkFragment(ctx context.Context, a *model.Association) error {
	return s.pg.Transaction(ctx, func(tx *gorm.DB) error {
		share := clause.Locking{Strength: "SHARE"}

		var c model.Cluster
		if err := tx.Clauses(share).Select("id", "owner_id").First(&c, "id = ?", a.ClusterID).Error; err != nil {
			return fmt.Errorf("cluster %d: %w", a.ClusterID, postgres.TranslateError(err))
		}
		var f model.Fragment
		if err := tx.Clauses(share).Select("id", "owner_id").First(&f, "id = ?", a.FragmentID).Error; err != nil {
			return fmt.Errorf("fragment %d: %w", a.FragmentID, postgres.TranslateError(err))
		}
		if c.OwnerID != f.OwnerID {
			return fmt.Errorf("%w: cluster %d, fragment %d", ErrOwnerMismatch, a.ClusterID, a.FragmentID)
		}
		return upsertAssociation(tx, a)
	})
}

func upsertAssociation(db *gorm.DB, a *model.Association) error {
	now := time.Now().UTC()
	row := model.Association{
		ClusterID:  a.ClusterID,
		FragmentID: a.FragmentID,
		Score:      a.Score,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cluster_id"}, {Name: "fragment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&row).Error

	// The unique index keeps one row per pair: a duplicate is the pair
	// already being there.
	if err = postgres.TranslateError(err); err != nil && !errors.Is(err, postgres.ErrDuplicateKey) {
		return err
	}

	var stored model.Association
	err = db.Where("cluster_id = ? AND fragment_id = ?", a.ClusterID, a.FragmentID).First(&stored).Error
	if err != nil {
		return postgres.TranslateError(err)
	}
	*a = stored
	return nil
}

// AssociationsForCluster returns the cluster's associations by descending score.
func (s *Store) AssociationsForCluster(ctx context.Context, clusterID uint64) ([]model.Association, error) {
	var rows []model.Association
	err := s.pg.WithContext(ctx).Where("cluster_id = ?", clusterID).Order("score DESC").Order("id").Find(&rows).Error
	return rows, postgres.TranslateError(err)
}

// AssociationsForFragment returns the fragment's associations by descending score.
func (s *Store) AssociationsForFragment(ctx context.Context, fragmentID uint64) ([]model.Association, error) {
	var rows []model.Association
	err := s.pg.WithContext(ctx).Where("fragment_id = ?", fragmentID).Order("score DESC").Order("id").Find(&rows).Error
	return rows, postgres.TranslateError(err)
}

// DeleteAssociationsForCluster removes whatever associations still point at
// clusterID and returns how many there were.
func (s *Store) DeleteAssociationsForCluster(ctx context.Context, clusterID uint64) (int64, error) {
	res := s.pg.WithContext(ctx).Where("cluster_id = ?", clusterID).Delete(&model.Association{})
	return res.RowsAffected, postgres.TranslateError(res.Error)
}
