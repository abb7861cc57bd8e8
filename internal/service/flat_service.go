package service

import (
	"context"
	"fmt"
	"time"

	"flatnest/internal/imagestore"
	"flatnest/internal/models"
	"flatnest/internal/observability"
	"flatnest/internal/repository"

	"github.com/google/uuid"
)

// FlatService manages listings and their image collections.
type FlatService struct {
	flatRepo repository.FlatRepository
	images   imagestore.Client
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

type CreateFlatInput struct {
	OwnerID       uint
	Title         string
	Description   string
	PropertyType  string
	City          string
	StreetName    string
	StreetNumber  string
	AreaSize      float64
	YearBuilt     int
	RentPrice     float64
	DateAvailable time.Time
	Bedrooms      int
	Bathrooms     int
	MaxGuests     int
}

type UpdateFlatInput struct {
	UserID        uint
	FlatID        uint
	Title         *string
	Description   *string
	PropertyType  *string
	City          *string
	StreetName    *string
	StreetNumber  *string
	AreaSize      *float64
	YearBuilt     *int
	RentPrice     *float64
	DateAvailable *time.Time
	Bedrooms      *int
	Bathrooms     *int
	MaxGuests     *int
}

type UploadFlatImageInput struct {
	UserID      uint
	FlatID      uint
	Filename    string
	ContentType string
	Content     []byte
	Description string
	IsMain      bool
}

type FlatImageRefInput struct {
	UserID  uint
	FlatID  uint
	ImageID uint
}

func NewFlatService(
	flatRepo repository.FlatRepository,
	images imagestore.Client,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *FlatService {
	return &FlatService{flatRepo: flatRepo, images: images, isAdmin: isAdmin}
}

func (s *FlatService) requireOwnerOrAdmin(ctx context.Context, flat *models.Flat, userID uint) error {
	if flat.OwnerID == userID {
		return nil
	}
	if s.isAdmin != nil {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewForbiddenError("You can only manage your own flats")
}

func validateFlatBasics(title, description, propertyType, city string, areaSize, rentPrice float64) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if description == "" {
		return models.NewValidationError("Description is required")
	}
	if !models.ValidPropertyType(propertyType) {
		return models.NewValidationError("Invalid property type")
	}
	if city == "" {
		return models.NewValidationError("City is required")
	}
	if areaSize <= 0 {
		return models.NewValidationError("Area size must be positive")
	}
	if rentPrice <= 0 {
		return models.NewValidationError("Rent price must be positive")
	}
	return nil
}

func (s *FlatService) CreateFlat(ctx context.Context, in CreateFlatInput) (*models.Flat, error) {
	if err := validateFlatBasics(in.Title, in.Description, in.PropertyType, in.City, in.AreaSize, in.RentPrice); err != nil {
		return nil, err
	}

	flat := &models.Flat{
		OwnerID:       in.OwnerID,
		Title:         in.Title,
		Description:   in.Description,
		PropertyType:  in.PropertyType,
		City:          in.City,
		StreetName:    in.StreetName,
		StreetNumber:  in.StreetNumber,
		AreaSize:      in.AreaSize,
		YearBuilt:     in.YearBuilt,
		RentPrice:     in.RentPrice,
		DateAvailable: in.DateAvailable,
		Bedrooms:      in.Bedrooms,
		Bathrooms:     in.Bathrooms,
		MaxGuests:     in.MaxGuests,
	}
	if err := s.flatRepo.Create(ctx, flat); err != nil {
		return nil, err
	}
	return s.flatRepo.GetByID(ctx, flat.ID)
}

func (s *FlatService) GetFlat(ctx context.Context, id uint) (*models.Flat, error) {
	return s.flatRepo.GetByID(ctx, id)
}

func (s *FlatService) ListFlats(ctx context.Context, filter repository.FlatFilter) ([]models.Flat, int64, error) {
	return s.flatRepo.List(ctx, filter)
}

func (s *FlatService) ListByOwner(ctx context.Context, ownerID uint) ([]models.Flat, error) {
	return s.flatRepo.ListByOwner(ctx, ownerID)
}

func (s *FlatService) UpdateFlat(ctx context.Context, in UpdateFlatInput) (*models.Flat, error) {
	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, flat, in.UserID); err != nil {
		return nil, err
	}

	if in.Title != nil {
		flat.Title = *in.Title
	}
	if in.Description != nil {
		flat.Description = *in.Description
	}
	if in.PropertyType != nil {
		flat.PropertyType = *in.PropertyType
	}
	if in.City != nil {
		flat.City = *in.City
	}
	if in.StreetName != nil {
		flat.StreetName = *in.StreetName
	}
	if in.StreetNumber != nil {
		flat.StreetNumber = *in.StreetNumber
	}
	if in.AreaSize != nil {
		flat.AreaSize = *in.AreaSize
	}
	if in.YearBuilt != nil {
		flat.YearBuilt = *in.YearBuilt
	}
	if in.RentPrice != nil {
		flat.RentPrice = *in.RentPrice
	}
	if in.DateAvailable != nil {
		flat.DateAvailable = *in.DateAvailable
	}
	if in.Bedrooms != nil {
		flat.Bedrooms = *in.Bedrooms
	}
	if in.Bathrooms != nil {
		flat.Bathrooms = *in.Bathrooms
	}
	if in.MaxGuests != nil {
		flat.MaxGuests = *in.MaxGuests
	}

	if err := validateFlatBasics(flat.Title, flat.Description, flat.PropertyType, flat.City, flat.AreaSize, flat.RentPrice); err != nil {
		return nil, err
	}

	// Associations are saved separately; drop them before Save
	flat.Images = nil
	flat.Owner = models.User{}
	if err := s.flatRepo.Update(ctx, flat); err != nil {
		return nil, err
	}
	return s.flatRepo.GetByID(ctx, flat.ID)
}

// UploadImage runs the upload pipeline for one listing image: validate and
// re-encode the file, push it to the object store, persist the record, then
// re-apply the main-image invariant over the full list.
func (s *FlatService) UploadImage(ctx context.Context, in UploadFlatImageInput) (*models.Flat, error) {
	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, flat, in.UserID); err != nil {
		return nil, err
	}

	encoded, err := prepareImage(in.Content, in.ContentType)
	if err != nil {
		observability.ImageUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	publicID := fmt.Sprintf("flats/%d/%s", flat.ID, uuid.New().String())
	uploaded, err := s.images.Upload(ctx, encoded, publicID)
	if err != nil {
		observability.ImageUploadsTotal.WithLabelValues("store_error").Inc()
		return nil, models.NewDependencyFailure("image_upload", err)
	}
	observability.ImageUploadsTotal.WithLabelValues("ok").Inc()

	image := &models.FlatImage{
		FlatID:      flat.ID,
		URL:         uploaded.URL,
		PublicID:    uploaded.PublicID,
		Description: in.Description,
		IsMain:      in.IsMain,
		Position:    len(flat.Images),
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.flatRepo.AddImage(ctx, image); err != nil {
		return nil, err
	}

	flat.Images = append(flat.Images, *image)
	if in.IsMain {
		if err := flat.SetMainImage(image.ID); err != nil {
			return nil, err
		}
	} else {
		flat.NormalizeImages()
	}
	if err := s.flatRepo.SaveImages(ctx, flat.ID, flat.Images); err != nil {
		return nil, err
	}

	return s.flatRepo.GetByID(ctx, flat.ID)
}

// DeleteImage removes one listing image, releasing the stored asset
// best-effort and promoting a new main image when needed.
func (s *FlatService) DeleteImage(ctx context.Context, in FlatImageRefInput) (*models.Flat, error) {
	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, flat, in.UserID); err != nil {
		return nil, err
	}

	removed, err := flat.RemoveImage(in.ImageID)
	if err != nil {
		return nil, err
	}

	if s.images != nil {
		// Losing the stored asset is recoverable; losing the invariant is not.
		_ = s.images.Delete(ctx, removed.PublicID)
	}

	if err := s.flatRepo.DeleteImage(ctx, removed.ID); err != nil {
		return nil, err
	}
	if err := s.flatRepo.SaveImages(ctx, flat.ID, flat.Images); err != nil {
		return nil, err
	}

	return s.flatRepo.GetByID(ctx, flat.ID)
}

// SetMainImage flags the given image as the listing's main image.
func (s *FlatService) SetMainImage(ctx context.Context, in FlatImageRefInput) (*models.Flat, error) {
	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, flat, in.UserID); err != nil {
		return nil, err
	}

	if err := flat.SetMainImage(in.ImageID); err != nil {
		return nil, err
	}
	if err := s.flatRepo.SaveImages(ctx, flat.ID, flat.Images); err != nil {
		return nil, err
	}

	return s.flatRepo.GetByID(ctx, flat.ID)
}
