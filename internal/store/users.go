package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/jmorand/crm-backend/internal/hash"
	"github.com/jmorand/crm-backend/internal/models"
)

// UserStore persists API accounts. Plaintext passwords never leave Create
// and Authenticate.
type UserStore struct {
	repo[models.User]
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{repo[models.User]{db: db}}
}

func (s *UserStore) Create(ctx context.Context, name, email, role, password string) (*models.User, error) {
	taken, err := s.emailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: pwHash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.byID(ctx, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.byEmail(ctx, email)
}

// Update overwrites the mutable profile fields. The password hash and the
// active flag are untouched.
func (s *UserStore) Update(ctx context.Context, id uint, name, email, role string) (*models.User, error) {
	user, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.emailTaken(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user.Name = name
	user.Email = email
	user.Role = role
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserStore) Delete(ctx context.Context, id uint) error {
	user, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, user)
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	return s.list(ctx)
}

// Authenticate resolves email+password to a user. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.byEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
