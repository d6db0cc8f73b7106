package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// repo holds the operations shared by both stores. The auth and CRM stores
// are structurally different records behind the same access pattern, so the
// common lookups are written once and instantiated per record type.
type repo[M any] struct {
	db *gorm.DB
}

func (r repo[M]) byID(ctx context.Context, id uint) (*M, error) {
	var rec M
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r repo[M]) byEmail(ctx context.Context, email string) (*M, error) {
	var rec M
	if err := r.db.WithContext(ctx).First(&rec, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r repo[M]) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(new(M)).Where("email = ?", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r repo[M]) list(ctx context.Context) ([]M, error) {
	var recs []M
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r repo[M]) delete(ctx context.Context, rec *M) error {
	return r.db.WithContext(ctx).Delete(rec).Error
}

// isUniqueViolation recognizes a uniqueness conflict surfaced by the driver
// when the pre-insert existence check raced with another writer.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
