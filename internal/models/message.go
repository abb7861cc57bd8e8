package models

import (
	"time"

	"gorm.io/gorm"
)

// ReviewRating carries the scores of a rated review. All fields are optional;
// a message with a nil Overall carries no rating at all. Aspect scores may be
// supplied independently of each other.
type ReviewRating struct {
	Overall       *int `gorm:"column:overall" json:"overall,omitempty"`
	Cleanliness   *int `gorm:"column:cleanliness" json:"cleanliness,omitempty"`
	Communication *int `gorm:"column:communication" json:"communication,omitempty"`
	Location      *int `gorm:"column:location" json:"location,omitempty"`
	Accuracy      *int `gorm:"column:accuracy" json:"accuracy,omitempty"`
	Value         *int `gorm:"column:value" json:"value,omitempty"`
}

// Validate checks that every supplied score is within 1..5 and that aspect
// scores are not supplied without an overall score.
func (r *ReviewRating) Validate() error {
	scores := map[string]*int{
		"overall":       r.Overall,
		"cleanliness":   r.Cleanliness,
		"communication": r.Communication,
		"location":      r.Location,
		"accuracy":      r.Accuracy,
		"value":         r.Value,
	}
	for name, s := range scores {
		if s != nil && (*s < 1 || *s > 5) {
			return NewValidationError("Rating " + name + " must be between 1 and 5")
		}
	}
	if r.Overall == nil {
		for name, s := range scores {
			if name != "overall" && s != nil {
				return NewValidationError("Aspect ratings require an overall rating")
			}
		}
	}
	return nil
}

// Message is a comment, reply or review on a flat. A nil ParentID marks a
// top-level message; only top-level messages may carry a rating, and replies
// inherit the flat of their parent.
type Message struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Content  string `gorm:"not null" json:"content"`
	FlatID   uint   `gorm:"not null;index" json:"flat_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`

	Rating ReviewRating `gorm:"embedded;embeddedPrefix:rating_" json:"rating"`

	IsHidden bool       `gorm:"default:false" json:"is_hidden"`
	IsEdited bool       `gorm:"default:false" json:"is_edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	AttachmentURL string `json:"attachment_url,omitempty"`
	AttachmentID  string `json:"-"`

	Replies []Message `gorm:"foreignKey:ParentID" json:"replies,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsTopLevel reports whether the message starts a thread.
func (m *Message) IsTopLevel() bool {
	return m.ParentID == nil
}

// HasRating reports whether the message carries a review rating.
func (m *Message) HasRating() bool {
	return m.Rating.Overall != nil
}

// QualifiesForAggregation reports whether the message counts toward its flat's
// ratings snapshot: visible, top level, and rated.
func (m *Message) QualifiesForAggregation() bool {
	return m.IsTopLevel() && !m.IsHidden && m.HasRating()
}
