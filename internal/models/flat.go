package models

import (
	"time"

	"gorm.io/gorm"
)

// Property types accepted for a listing.
const (
	PropertyTypeApartment = "apartment"
	PropertyTypeHouse     = "house"
	PropertyTypeStudio    = "studio"
	PropertyTypeLoft      = "loft"
	PropertyTypeRoom      = "room"
)

// ValidPropertyType reports whether t is one of the accepted property types.
func ValidPropertyType(t string) bool {
	switch t {
	case PropertyTypeApartment, PropertyTypeHouse, PropertyTypeStudio, PropertyTypeLoft, PropertyTypeRoom:
		return true
	}
	return false
}

// RatingAspects holds the per-aspect averages of a flat's reviews.
type RatingAspects struct {
	Cleanliness   float64 `json:"cleanliness"`
	Communication float64 `json:"communication"`
	Location      float64 `json:"location"`
	Accuracy      float64 `json:"accuracy"`
	Value         float64 `json:"value"`
}

// RatingSnapshot is the denormalized rating cache embedded in a Flat. It is
// derived from the flat's visible top-level rated messages and recomputed
// eagerly on every review mutation; it is never the source of truth.
type RatingSnapshot struct {
	Overall      float64       `json:"overall"`
	Aspects      RatingAspects `gorm:"embedded;embeddedPrefix:aspect_" json:"aspects"`
	TotalReviews int           `json:"total_reviews"`
}

// FlatImage is one image attached to a listing. The backing file lives in the
// object store under PublicID.
type FlatImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FlatID      uint      `gorm:"not null;index" json:"flat_id"`
	URL         string    `gorm:"not null" json:"url"`
	PublicID    string    `gorm:"not null" json:"-"`
	Description string    `json:"description"`
	IsMain      bool      `gorm:"default:false" json:"is_main"`
	Position    int       `json:"position"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Flat represents a rental listing owned by exactly one user.
type Flat struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	OwnerID       uint           `gorm:"not null;index" json:"owner_id"`
	Owner         User           `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Title         string         `gorm:"not null" json:"title"`
	Description   string         `gorm:"not null" json:"description"`
	PropertyType  string         `gorm:"not null" json:"property_type"`
	City          string         `gorm:"not null;index" json:"city"`
	StreetName    string         `gorm:"not null" json:"street_name"`
	StreetNumber  string         `gorm:"not null" json:"street_number"`
	AreaSize      float64        `gorm:"not null" json:"area_size"`
	YearBuilt     int            `gorm:"not null" json:"year_built"`
	RentPrice     float64        `gorm:"not null;index" json:"rent_price"`
	DateAvailable time.Time      `json:"date_available"`
	Bedrooms      int            `json:"bedrooms"`
	Bathrooms     int            `json:"bathrooms"`
	MaxGuests     int            `json:"max_guests"`
	Ratings       RatingSnapshot `gorm:"embedded;embeddedPrefix:rating_" json:"ratings"`
	Images        []FlatImage    `gorm:"foreignKey:FlatID" json:"images"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// NormalizeImages enforces the main-image invariant over the flat's image list:
// at most one image is flagged main, and if any images exist exactly one is.
// When more than one image is flagged, the first flagged one wins. Returns true
// if any flag was changed.
func (f *Flat) NormalizeImages() bool {
	changed := false
	seenMain := false
	for i := range f.Images {
		if f.Images[i].IsMain {
			if seenMain {
				f.Images[i].IsMain = false
				changed = true
			}
			seenMain = true
		}
	}
	if !seenMain && len(f.Images) > 0 {
		f.Images[0].IsMain = true
		changed = true
	}
	return changed
}

// SetMainImage flags exactly the image with the given id as main and clears all
// others. Returns NotFound if the id does not belong to this flat.
func (f *Flat) SetMainImage(imageID uint) error {
	found := false
	for i := range f.Images {
		if f.Images[i].ID == imageID {
			found = true
			break
		}
	}
	if !found {
		return NewNotFoundError("Image", imageID)
	}
	for i := range f.Images {
		f.Images[i].IsMain = f.Images[i].ID == imageID
	}
	return nil
}

// RemoveImage drops the image with the given id from the list. If the removed
// image was main and other images remain, the first remaining image is
// promoted. Returns the removed image, or NotFound.
func (f *Flat) RemoveImage(imageID uint) (*FlatImage, error) {
	idx := -1
	for i := range f.Images {
		if f.Images[i].ID == imageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, NewNotFoundError("Image", imageID)
	}
	removed := f.Images[idx]
	f.Images = append(f.Images[:idx], f.Images[idx+1:]...)
	if removed.IsMain && len(f.Images) > 0 {
		f.NormalizeImages()
	}
	return &removed, nil
}

// MainImage returns the image currently flagged main, or nil.
func (f *Flat) MainImage() *FlatImage {
	for i := range f.Images {
		if f.Images[i].IsMain {
			return &f.Images[i]
		}
	}
	return nil
}
