// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"flatnest/internal/cache"
	"flatnest/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDWithFlats(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hashed string) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)

	SoftDelete(ctx context.Context, id uint) error
	RevertSoftDelete(ctx context.Context, id uint) error
	ResetProfileImage(ctx context.Context, id uint, url, imageID string) error

	AddFavorite(ctx context.Context, userID, flatID uint) error
	RemoveFavorite(ctx context.Context, userID, flatID uint) error
	ListFavorites(ctx context.Context, userID uint) ([]models.Flat, error)
	IsFavorite(ctx context.Context, userID, flatID uint) (bool, error)
	RemoveFlatFromAllFavorites(ctx context.Context, flatID uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDWithFlats(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Preload("Flats", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Flats.Images").
		First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An account with this email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An account with this email already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hashed string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hashed)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// RevertSoftDelete clears deleted_at again so a half-finished deletion does not
// leave the account unreachable.
func (r *userRepository) RevertSoftDelete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// ResetProfileImage swaps the profile image fields for the given sentinel values.
// Runs unscoped because the row is typically already soft deleted at this point.
func (r *userRepository) ResetProfileImage(ctx context.Context, id uint, url, imageID string) error {
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"profile_image":    url,
			"profile_image_id": imageID,
		}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) AddFavorite(ctx context.Context, userID, flatID uint) error {
	user := models.User{ID: userID}
	flat := models.Flat{ID: flatID}
	if err := r.db.WithContext(ctx).Model(&user).Association("Favorites").Append(&flat); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, userID)
	return nil
}

func (r *userRepository) RemoveFavorite(ctx context.Context, userID, flatID uint) error {
	user := models.User{ID: userID}
	flat := models.Flat{ID: flatID}
	if err := r.db.WithContext(ctx).Model(&user).Association("Favorites").Delete(&flat); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, userID)
	return nil
}

func (r *userRepository) ListFavorites(ctx context.Context, userID uint) ([]models.Flat, error) {
	var flats []models.Flat
	err := r.db.WithContext(ctx).
		Model(&models.User{ID: userID}).
		Preload("Images").
		Association("Favorites").
		Find(&flats)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return flats, nil
}

func (r *userRepository) IsFavorite(ctx context.Context, userID, flatID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table("user_favorites").
		Where("user_id = ? AND flat_id = ?", userID, flatID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// RemoveFlatFromAllFavorites clears the join rows referencing a flat. Used by
// the flat deletion cascade so no user keeps a dangling favorite.
func (r *userRepository) RemoveFlatFromAllFavorites(ctx context.Context, flatID uint) error {
	if err := r.db.WithContext(ctx).
		Exec("DELETE FROM user_favorites WHERE flat_id = ?", flatID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
