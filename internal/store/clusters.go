package store

import (
	"context"
	"errors"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"gorm.io/gorm"
)

// CreateCluster inserts c, or returns ErrClusterNameTaken.
func (s *Store) CreateCluster(ctx context.Context, c *model.Cluster) error {
	c.NameKey = model.NameKey(c.Name)
	err := postgres.TranslateError(s.pg.WithContext(ctx).Create(c).Error)
	if errors.Is(err, postgres.ErrDuplicateKey) {
		return ErrClusterNameTaken
	}
	return err
}

// FindCluster returns postgres.ErrRecordNotFound when id does not exist.
func (s *Store) FindCluster(ctx context.Context, id uint64) (model.Cluster, error) {
	var c model.Cluster
	err := s.pg.WithContext(ctx).First(&c, "id = ?", id).Error
	return c, postgres.TranslateError(err)
}

// ListClusters returns the owner's clusters in creation order.
func (s *Store) ListClusters(ctx context.Context, owner string) ([]model.Cluster, error) {
	var rows []model.Cluster
	err := s.pg.WithContext(ctx).Where("owner_id = ?", owner).Order("id").Find(&rows).Error
	return rows, postgres.TranslateError(err)
}

// SetClusterVector records the id of the cluster's name vector.
func (s *Store) SetClusterVector(ctx context.Context, id uint64, vectorID string) error {
	res := s.pg.WithContext(ctx).Model(&model.Cluster{}).Where("id = ?", id).Update("vector_id", vectorID)
	if res.Error != nil {
		return postgres.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return postgres.ErrRecordNotFound
	}
	return nil
}

// ResolveClusters returns the subset of ids that still exist, are active and
// belong to owner, keyed by id.
func (s *Store) ResolveClusters(ctx context.Context, owner string, ids []uint64) (map[uint64]model.Cluster, error) {
	out := make(map[uint64]model.Cluster, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []model.Cluster
	err := s.pg.WithContext(ctx).Where("owner_id = ? AND active = ? AND id IN ?", owner, true, ids).Find(&rows).Error
	if err != nil {
		return nil, postgres.TranslateError(err)
	}
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

// DeleteCluster locks the cluster row, then removes its associations and the
// cluster in one transaction.
func (s *Store) DeleteCluster(ctx context.Context, id uint64) error {
	return s.pg.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).Select("id").First(&model.Cluster{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("cluster_id = ?", id).Delete(&model.Association{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Cluster{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return postgres.ErrRecordNotFound
		}
		return nil
	})
}
