package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/jmorand/crm-backend/internal/models"
)

// ContactStore persists CRM records in its own database, independent of the
// API-user store.
type ContactStore struct {
	repo[models.Contact]
}

func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{repo[models.Contact]{db: db}}
}

func (s *ContactStore) Create(ctx context.Context, contact *models.Contact) error {
	taken, err := s.emailTaken(ctx, contact.Email, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *ContactStore) GetByID(ctx context.Context, id uint) (*models.Contact, error) {
	return s.byID(ctx, id)
}

func (s *ContactStore) GetByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return s.byEmail(ctx, email)
}

// Update is a full-record overwrite of every mutable field.
func (s *ContactStore) Update(ctx context.Context, id uint, upd models.Contact) (*models.Contact, error) {
	contact, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.emailTaken(ctx, upd.Email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	contact.Name = upd.Name
	contact.FirstName = upd.FirstName
	contact.Email = upd.Email
	contact.Telephone = upd.Telephone
	if err := s.db.WithContext(ctx).Save(contact).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return contact, nil
}

func (s *ContactStore) Delete(ctx context.Context, id uint) error {
	contact, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, contact)
}

func (s *ContactStore) List(ctx context.Context) ([]models.Contact, error) {
	return s.list(ctx)
}
