package store

import (
	"context"
	"errors"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// UserStore is the persistence interface consumed by the workflow and
// API layers. *GORMStore is the production implementation.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int) error
	SetConfirmed(ctx context.Context, id int, confirmed bool) error
	SetActivated(ctx context.Context, id int, activated bool) error
}

var _ UserStore = (*GORMStore)(nil)

func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

func (s *GORMStore) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *GORMStore) UpdateUser(ctx context.Context, user *models.User) error {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("id = ?", user.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrUserNotFound)
	}

	// Select explicit fields so zero values (false booleans, cleared
	// strings) are written too.
	return s.db.WithContext(ctx).
		Model(&existing).
		Select("Username", "DN", "Activated", "Confirmed", "IsAdmin", "Name", "Email", "ORCID").
		Updates(user).Error
}

func (s *GORMStore) DeleteUser(ctx context.Context, id int) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *GORMStore) SetConfirmed(ctx context.Context, id int, confirmed bool) error {
	return s.setFlag(ctx, id, "confirmed", confirmed)
}

func (s *GORMStore) SetActivated(ctx context.Context, id int, activated bool) error {
	return s.setFlag(ctx, id, "activated", activated)
}

func (s *GORMStore) setFlag(ctx context.Context, id int, column string, value bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update(column, value)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ============================================
// BOOTSTRAP ADMIN INITIALIZATION
// ============================================

// EnsureBootstrapAdmin force-confirms and force-admin-flags the
// configured bootstrap admin on startup. The row is created if it does
// not exist yet, so a fresh deployment has a working admin before the
// first directory login.
func (s *GORMStore) EnsureBootstrapAdmin(ctx context.Context, id int, username string) error {
	if username == "" || id == 0 {
		logger.Warn("no bootstrap admin configured")
		return nil
	}

	admin, err := s.GetUserByID(ctx, id)
	if errors.Is(err, models.ErrUserNotFound) {
		logger.Info("bootstrap admin not in database, creating", "username", username, "id", id)
		admin = &models.User{ID: id, Username: username}
		if err := s.CreateUser(ctx, admin); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	admin.Confirmed = true
	admin.IsAdmin = true
	if err := s.UpdateUser(ctx, admin); err != nil {
		return err
	}

	logger.Info("bootstrap admin confirmed and flagged", "username", admin.Username, "id", admin.ID)
	return nil
}
