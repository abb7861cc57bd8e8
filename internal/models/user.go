// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the marketplace. Accounts are never physically
// removed: deletion sets DeletedAt and resets the profile image to the configured
// default sentinel.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Email          string         `gorm:"unique;not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	FirstName      string         `gorm:"not null" json:"first_name"`
	LastName       string         `gorm:"not null" json:"last_name"`
	BirthDate      time.Time      `json:"birth_date"`
	IsAdmin        bool           `gorm:"default:false" json:"is_admin"`
	ProfileImage   string         `json:"profile_image"`
	ProfileImageID string         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Flats owned by this user. Deleting a flat removes it from this set.
	Flats []Flat `gorm:"foreignKey:OwnerID" json:"flats,omitempty"`
	// Favorites is the user's saved listings.
	Favorites []Flat `gorm:"many2many:user_favorites" json:"favorites,omitempty"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
