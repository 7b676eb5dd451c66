// Package store adapts gorm to the keyed record store the core works
// against: get/create/delete plus a conditional-update primitive. All
// stock reservation and binding logic is built on ConditionalUpdate.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("unique constraint conflict")
	ErrPredicateFailed = errors.New("predicate failed")
	ErrUnavailable     = errors.New("store unavailable")
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Get loads the record with the given primary key into out.
func (s *Store) Get(ctx context.Context, id uint, out any) error {
	if err := s.DB.WithContext(ctx).First(out, id).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, rec any) error {
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, model any, id uint) error {
	if err := s.DB.WithContext(ctx).Delete(model, id).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// ConditionalUpdate applies set to the rows of model matching the
// predicate. The predicate is re-evaluated by the store at write time,
// so a stale read between check and write cannot slip through. Zero
// matched rows reports ErrPredicateFailed; the caller decides whether
// that means a missing record or a failed condition.
func (s *Store) ConditionalUpdate(ctx context.Context, model any, set map[string]any, query string, args ...any) error {
	res := s.DB.WithContext(ctx).Model(model).Where(query, args...).Updates(set)
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPredicateFailed
	}
	return nil
}

func wrap(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
