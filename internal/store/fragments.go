package store

import (
	"context"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"gorm.io/gorm"
)

// CreateFragment inserts f as pending. Content is cut to
// model.MaxContentLength characters.
func (s *Store) CreateFragment(ctx context.Context, f *model.Fragment) error {
	f.Content = model.Truncate(f.Content, model.MaxContentLength)
	if f.Status == "" {
		f.Status = model.StatusPending
	}
	return postgres.TranslateError(s.pg.WithContext(ctx).Create(f).Error)
}

// FindFragment returns postgres.ErrRecordNotFound when id does not exist.
func (s *Store) FindFragment(ctx context.Context, id uint64) (model.Fragment, error) {
	var f model.Fragment
	err := s.pg.WithContext(ctx).First(&f, "id = ?", id).Error
	return f, postgres.TranslateError(err)
}

// ListFragments returns the owner's fragments, newest first.
func (s *Store) ListFragments(ctx context.Context, owner string) ([]model.Fragment, error) {
	var rows []model.Fragment
	err := s.pg.WithContext(ctx).Where("owner_id = ?", owner).Order("id DESC").Find(&rows).Error
	return rows, postgres.TranslateError(err)
}

// SetFragmentStatus updates the processing status of id.
func (s *Store) SetFragmentStatus(ctx context.Context, id uint64, status model.FragmentStatus) error {
	res := s.pg.WithContext(ctx).Model(&model.Fragment{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return postgres.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return postgres.ErrRecordNotFound
	}
	return nil
}

// SetFragmentContent replaces the content of id, cut to
// model.MaxContentLength characters.
func (s *Store) SetFragmentContent(ctx context.Context, id uint64, content string) error {
	res := s.pg.WithContext(ctx).Model(&model.Fragment{}).Where("id = ?", id).
		Update("content", model.Truncate(content, model.MaxContentLength))
	if res.Error != nil {
		return postgres.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return postgres.ErrRecordNotFound
	}
	return nil
}

// MarkProcessed moves fragment id of owner to processed. When this call made
// the transition it returns the owner's processed count including id, and
// transitioned is true. Transitions of one owner are serialised by a
// transaction-scoped advisory lock, so each count is observed by exactly one
// caller. It returns postgres.ErrRecordNotFound when the fragment is gone.
func (s *Store) MarkProcessed(ctx context.Context, owner string, id uint64) (count int64, transitioned bool, err error) {
	err = s.pg.Transaction(ctx, func(tx *gorm.DB) error {
		// SQLite allows a single writer, which already serialises this.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", owner).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&model.Fragment{}).
			Where("id = ? AND owner_id = ? AND status <> ?", id, owner, model.StatusProcessed).
			Update("status", model.StatusProcessed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&model.Fragment{}).Where("id = ? AND owner_id = ?", id, owner).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return postgres.ErrRecordNotFound
			}
			return nil
		}

		transitioned = true
		return processedQuery(tx, owner).Count(&count).Error
	})
	if err != nil {
		return 0, false, err
	}
	return count, transitioned, nil
}

// CountProcessed counts the owner's processed highlights and summaries.
func (s *Store) CountProcessed(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := processedQuery(s.pg.WithContext(ctx), owner).Count(&n).Error
	return n, postgres.TranslateError(err)
}

func processedQuery(db *gorm.DB, owner string) *gorm.DB {
	return db.Model(&model.Fragment{}).
		Where("owner_id = ? AND status = ? AND kind IN ?", owner, model.StatusProcessed,
			[]string{string(model.KindHighlight), string(model.KindSummary)})
}

// RecentContents returns the content of the owner's newest processed
// fragments, newest first.
func (s *Store) RecentContents(ctx context.Context, owner string, limit int) ([]string, error) {
	var contents []string
	err := s.pg.WithContext(ctx).Model(&model.Fragment{}).
		Where("owner_id = ? AND status = ?", owner, model.StatusProcessed).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Pluck("content", &contents).Error
	return contents, postgres.TranslateError(err)
}

// ResolveFragments returns the subset of ids that still exist and belong to
// owner, keyed by id.
func (s *Store) ResolveFragments(ctx context.Context, owner string, ids []uint64) (map[uint64]model.Fragment, error) {
	out := make(map[uint64]model.Fragment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []model.Fragment
	err := s.pg.WithContext(ctx).Where("owner_id = ? AND id IN ?", owner, ids).Find(&rows).Error
	if err != nil {
		return nil, postgres.TranslateError(err)
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// DeleteFragment locks the fragment row, then removes its associations and
// the fragment in one transaction.
func (s *Store) DeleteFragment(ctx context.Context, id uint64) error {
	return s.pg.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).Select("id").First(&model.Fragment{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("fragment_id = ?", id).Delete(&model.Association{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Fragment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return postgres.ErrRecordNotFound
		}
		return nil
	})
}
