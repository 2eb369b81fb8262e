package postgres

import (
	"context"

	"gorm.io/gorm"
)

// Transaction runs fn inside a database transaction. The *gorm.DB passed to
// fn is bound to ctx; returning an error rolls back.
//
//	err := pg.Transaction(ctx, func(tx *gorm.DB) error {
//		if err := tx.Delete(&model.Association{}, "cluster_id = ?", id).Error; err != nil {
//			return err
//		}
//		return tx.Delete(&model.Cluster{}, id).Error
//	})
func (p *Postgres) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return TranslateError(p.DB().WithContext(ctx).Transaction(fn))
}

// WithContext is DB().WithContext(ctx).
func (p *Postgres) WithContext(ctx context.Context) *gorm.DB {
	return p.DB().WithContext(ctx)
}
