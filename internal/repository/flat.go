package repository

import (
	"context"
	"errors"

	"flatnest/internal/cache"
	"flatnest/internal/models"

	"gorm.io/gorm"
)

// FlatFilter narrows flat listing queries. Zero values mean "no constraint".
type FlatFilter struct {
	City         string
	PropertyType string
	MinPrice     float64
	MaxPrice     float64
	MinBedrooms  int
	Limit        int
	Offset       int
}

// FlatRepository defines persistence operations for flats and their images.
type FlatRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Flat, error)
	Create(ctx context.Context, flat *models.Flat) error
	Update(ctx context.Context, flat *models.Flat) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter FlatFilter) ([]models.Flat, int64, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Flat, error)
	UpdateRatings(ctx context.Context, flatID uint, snapshot models.RatingSnapshot) (bool, error)

	AddImage(ctx context.Context, image *models.FlatImage) error
	SaveImages(ctx context.Context, flatID uint, images []models.FlatImage) error
	DeleteImage(ctx context.Context, imageID uint) error
	ListImages(ctx context.Context, flatID uint) ([]models.FlatImage, error)
	DeleteImagesByFlat(ctx context.Context, flatID uint) error
}

type flatRepository struct {
	db *gorm.DB
}

// NewFlatRepository returns a new FlatRepository implementation.
func NewFlatRepository(db *gorm.DB) FlatRepository {
	return &flatRepository{db: db}
}

func (r *flatRepository) GetByID(ctx context.Context, id uint) (*models.Flat, error) {
	var flat models.Flat
	key := cache.FlatKey(id)

	err := cache.Aside(ctx, key, &flat, cache.FlatTTL, func() error {
		if err := r.db.WithContext(ctx).
			Preload("Owner").
			Preload("Images", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC, id ASC")
			}).
			First(&flat, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Flat", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &flat, nil
}

func (r *flatRepository) Create(ctx context.Context, flat *models.Flat) error {
	if err := r.db.WithContext(ctx).Create(flat).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *flatRepository) Update(ctx context.Context, flat *models.Flat) error {
	if err := r.db.WithContext(ctx).Save(flat).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFlat(ctx, flat.ID)
	return nil
}

func (r *flatRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Flat{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Flat", id)
	}
	cache.InvalidateFlat(ctx, id)
	return nil
}

func (r *flatRepository) List(ctx context.Context, filter FlatFilter) ([]models.Flat, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&models.Flat{})
	if filter.City != "" {
		q = q.Where("city = ?", filter.City)
	}
	if filter.PropertyType != "" {
		q = q.Where("property_type = ?", filter.PropertyType)
	}
	if filter.MinPrice > 0 {
		q = q.Where("rent_price >= ?", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		q = q.Where("rent_price <= ?", filter.MaxPrice)
	}
	if filter.MinBedrooms > 0 {
		q = q.Where("bedrooms >= ?", filter.MinBedrooms)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var flats []models.Flat
	if err := q.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&flats).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return flats, total, nil
}

func (r *flatRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Flat, error) {
	var flats []models.Flat
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Preload("Images").
		Order("created_at DESC").
		Find(&flats).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return flats, nil
}

// UpdateRatings writes a freshly computed snapshot onto the flat row. Returns
// false without error when the flat no longer exists, so callers recomputing
// after a deletion can treat it as a no-op.
func (r *flatRepository) UpdateRatings(ctx context.Context, flatID uint, snapshot models.RatingSnapshot) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Flat{}).
		Where("id = ?", flatID).
		Updates(map[string]any{
			"rating_overall":               snapshot.Overall,
			"rating_aspect_cleanliness":    snapshot.Aspects.Cleanliness,
			"rating_aspect_communication":  snapshot.Aspects.Communication,
			"rating_aspect_location":       snapshot.Aspects.Location,
			"rating_aspect_accuracy":       snapshot.Aspects.Accuracy,
			"rating_aspect_value":          snapshot.Aspects.Value,
			"rating_total_reviews":         snapshot.TotalReviews,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	cache.InvalidateFlat(ctx, flatID)
	return res.RowsAffected > 0, nil
}

func (r *flatRepository) AddImage(ctx context.Context, image *models.FlatImage) error {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFlat(ctx, image.FlatID)
	return nil
}

// SaveImages persists main-flag and position changes for a flat's image rows.
func (r *flatRepository) SaveImages(ctx context.Context, flatID uint, images []models.FlatImage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range images {
			if err := tx.Model(&models.FlatImage{}).
				Where("id = ? AND flat_id = ?", images[i].ID, flatID).
				Updates(map[string]any{
					"is_main":  images[i].IsMain,
					"position": images[i].Position,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFlat(ctx, flatID)
	return nil
}

func (r *flatRepository) DeleteImage(ctx context.Context, imageID uint) error {
	var image models.FlatImage
	if err := r.db.WithContext(ctx).First(&image, imageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Image", imageID)
		}
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&models.FlatImage{}, imageID).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFlat(ctx, image.FlatID)
	return nil
}

func (r *flatRepository) ListImages(ctx context.Context, flatID uint) ([]models.FlatImage, error) {
	var images []models.FlatImage
	if err := r.db.WithContext(ctx).
		Where("flat_id = ?", flatID).
		Order("position ASC, id ASC").
		Find(&images).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return images, nil
}

func (r *flatRepository) DeleteImagesByFlat(ctx context.Context, flatID uint) error {
	if err := r.db.WithContext(ctx).
		Where("flat_id = ?", flatID).
		Delete(&models.FlatImage{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFlat(ctx, flatID)
	return nil
}
