package service

import (
	"context"
	"fmt"
	"time"

	"flatnest/internal/imagestore"
	"flatnest/internal/models"
	"flatnest/internal/observability"
	"flatnest/internal/repository"
	"flatnest/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService manages profiles, favorites and password changes.
type UserService struct {
	userRepo repository.UserRepository
	flatRepo repository.FlatRepository
	images   imagestore.Client
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

type UpdateProfileInput struct {
	UserID    uint
	FirstName *string
	LastName  *string
	BirthDate *time.Time
}

type UploadProfileImageInput struct {
	UserID      uint
	ContentType string
	Content     []byte
}

type ChangePasswordInput struct {
	UserID          uint
	CurrentPassword string
	NewPassword     string
}

func NewUserService(
	userRepo repository.UserRepository,
	flatRepo repository.FlatRepository,
	images imagestore.Client,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *UserService {
	return &UserService{userRepo: userRepo, flatRepo: flatRepo, images: images, isAdmin: isAdmin}
}

// ListUsers returns active accounts only; soft-deleted rows are excluded by
// the gorm soft-delete scope.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByIDWithFlats(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		if err := validation.ValidateName(*in.FirstName); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		if err := validation.ValidateName(*in.LastName); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.LastName = *in.LastName
	}
	if in.BirthDate != nil {
		if err := validation.ValidateBirthDate(*in.BirthDate); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.BirthDate = *in.BirthDate
	}

	user.Flats = nil
	user.Favorites = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadProfileImage runs the image pipeline for an avatar and swaps the old
// stored asset for the new one.
func (s *UserService) UploadProfileImage(ctx context.Context, in UploadProfileImageInput, defaultImageID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	encoded, err := prepareImage(in.Content, in.ContentType)
	if err != nil {
		observability.ImageUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	publicID := fmt.Sprintf("profiles/%d/%s", user.ID, uuid.New().String())
	uploaded, err := s.images.Upload(ctx, encoded, publicID)
	if err != nil {
		observability.ImageUploadsTotal.WithLabelValues("store_error").Inc()
		return nil, models.NewDependencyFailure("image_upload", err)
	}
	observability.ImageUploadsTotal.WithLabelValues("ok").Inc()

	oldID := user.ProfileImageID
	user.ProfileImage = uploaded.URL
	user.ProfileImageID = uploaded.PublicID
	user.Flats = nil
	user.Favorites = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if oldID != "" && oldID != defaultImageID {
		_ = s.images.Delete(ctx, oldID)
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)); err != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, string(hashed))
}

func (s *UserService) AddFavorite(ctx context.Context, userID, flatID uint) error {
	if _, err := s.flatRepo.GetByID(ctx, flatID); err != nil {
		return err
	}
	return s.userRepo.AddFavorite(ctx, userID, flatID)
}

func (s *UserService) RemoveFavorite(ctx context.Context, userID, flatID uint) error {
	return s.userRepo.RemoveFavorite(ctx, userID, flatID)
}

func (s *UserService) ListFavorites(ctx context.Context, userID uint) ([]models.Flat, error) {
	return s.userRepo.ListFavorites(ctx, userID)
}
