package store

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// UpsertProfile replaces the owner's radar.
func (s *Store) UpsertProfile(ctx context.Context, owner string, radar []byte) error {
	p := model.Profile{
		OwnerID:   owner,
		Radar:     datatypes.JSON(radar),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.pg.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"radar", "updated_at"}),
	}).Create(&p).Error
	return postgres.TranslateError(err)
}

// FindProfile returns postgres.ErrRecordNotFound when the owner has none yet.
func (s *Store) FindProfile(ctx context.Context, owner string) (model.Profile, error) {
	var p model.Profile
	err := s.pg.WithContext(ctx).First(&p, "owner_id = ?", owner).Error
	return p, postgres.TranslateError(err)
}

// SaveDocumentAnalysis inserts d unless the fingerprint is already stored.
// A stored degraded analysis is replaced. It reports whether a row was written.
func (s *Store) SaveDocumentAnalysis(ctx context.Context, d *model.DocumentAnalysis) (bool, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	res := s.pg.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_id", "name", "content_type", "summary", "tags", "sentiment", "degraded", "vector_id",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "document_analyses", Name: "degraded"}, Value: true},
		}},
	}).Create(d)
	if res.Error != nil {
		return false, postgres.TranslateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindDocumentAnalysis returns postgres.ErrRecordNotFound when absent.
func (s *Store) FindDocumentAnalysis(ctx context.Context, fingerprint string) (model.DocumentAnalysis, error) {
	var d model.DocumentAnalysis
	err := s.pg.WithContext(ctx).First(&d, "fingerprint = ?", fingerprint).Error
	return d, postgres.TranslateError(err)
}
