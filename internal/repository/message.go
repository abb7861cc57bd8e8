package repository

import (
	"context"
	"errors"

	"flatnest/internal/cache"
	"flatnest/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for flat messages and reviews.
type MessageRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	Update(ctx context.Context, message *models.Message) error
	Delete(ctx context.Context, id uint) error
	DeleteReplies(ctx context.Context, parentID uint) error
	DeleteByFlat(ctx context.Context, flatID uint) error

	ListByFlat(ctx context.Context, flatID uint, includeHidden bool) ([]models.Message, error)
	ListQualifying(ctx context.Context, flatID uint) ([]models.Message, error)
	ListAttachmentIDs(ctx context.Context, flatID uint) ([]string, error)
	HasRatedReview(ctx context.Context, flatID, authorID uint) (bool, error)
	CountByFlat(ctx context.Context, flatID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Replies.Author").
		First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.FlatMessagesKey(message.FlatID))
	return nil
}

func (r *messageRepository) Update(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Save(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.FlatMessagesKey(message.FlatID))
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Message", id)
		}
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&models.Message{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.FlatMessagesKey(message.FlatID))
	return nil
}

// DeleteReplies removes the direct replies of a thread starter. Threads are one
// level deep so this closes out the whole thread.
func (r *messageRepository) DeleteReplies(ctx context.Context, parentID uint) error {
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Delete(&models.Message{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) DeleteByFlat(ctx context.Context, flatID uint) error {
	if err := r.db.WithContext(ctx).
		Where("flat_id = ?", flatID).
		Delete(&models.Message{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.FlatMessagesKey(flatID))
	return nil
}

// ListByFlat returns the flat's top-level messages with their replies. Hidden
// messages are filtered out unless includeHidden is set (owner or admin view).
func (r *messageRepository) ListByFlat(ctx context.Context, flatID uint, includeHidden bool) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.WithContext(ctx).
		Where("flat_id = ? AND parent_id IS NULL", flatID)
	if !includeHidden {
		q = q.Where("is_hidden = ?", false)
	}
	if err := q.
		Preload("Author").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			if !includeHidden {
				db = db.Where("is_hidden = ?", false)
			}
			return db.Order("created_at ASC")
		}).
		Preload("Replies.Author").
		Order("created_at DESC").
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// ListQualifying returns the messages that count toward the flat's rating
// snapshot: top level, visible, and carrying an overall rating.
func (r *messageRepository) ListQualifying(ctx context.Context, flatID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("flat_id = ? AND parent_id IS NULL AND is_hidden = ? AND rating_overall IS NOT NULL", flatID, false).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// ListAttachmentIDs returns the storage ids of every attachment on the flat's
// messages, hidden and replies included. Used by the deletion cascade to
// release the assets before the rows go.
func (r *messageRepository) ListAttachmentIDs(ctx context.Context, flatID uint) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("flat_id = ? AND attachment_id <> ''", flatID).
		Pluck("attachment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// HasRatedReview reports whether the author already has a rated top-level
// review on the flat, hidden or not.
func (r *messageRepository) HasRatedReview(ctx context.Context, flatID, authorID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("flat_id = ? AND author_id = ? AND parent_id IS NULL AND rating_overall IS NOT NULL", flatID, authorID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *messageRepository) CountByFlat(ctx context.Context, flatID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("flat_id = ?", flatID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
