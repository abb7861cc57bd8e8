package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flatnest/internal/imagestore"
	"flatnest/internal/middleware"
	"flatnest/internal/models"
	"flatnest/internal/notifications"
	"flatnest/internal/repository"

	"github.com/google/uuid"
)

const maxMessageLen = 10000

// MessageService manages comments, replies and rated reviews on flats.
type MessageService struct {
	messageRepo repository.MessageRepository
	flatRepo    repository.FlatRepository
	rating      *RatingService
	notifier    notifications.Notifier
	images      imagestore.Client
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateMessageInput struct {
	AuthorID uint
	FlatID   uint
	Content  string
	Rating   *models.ReviewRating
}

type CreateReplyInput struct {
	AuthorID uint
	ParentID uint
	Content  string
}

type UpdateMessageInput struct {
	UserID    uint
	MessageID uint
	Content   *string
	Rating    *models.ReviewRating
}

type DeleteMessageInput struct {
	UserID    uint
	MessageID uint
}

type SetVisibilityInput struct {
	UserID    uint
	MessageID uint
	Hidden    bool
}

type SetAttachmentInput struct {
	UserID      uint
	MessageID   uint
	Filename    string
	ContentType string
	Content     []byte
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	flatRepo repository.FlatRepository,
	rating *RatingService,
	notifier notifications.Notifier,
	images imagestore.Client,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		flatRepo:    flatRepo,
		rating:      rating,
		notifier:    notifier,
		images:      images,
		isAdmin:     isAdmin,
	}
}

func validateContent(content string) error {
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > maxMessageLen {
		return models.NewValidationError("Message too long (max 10000 characters)")
	}
	return nil
}

func (s *MessageService) requireAuthorOrAdmin(ctx context.Context, message *models.Message, userID uint, action string) error {
	if message.AuthorID == userID {
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
	return models.NewForbiddenError("You can only " + action + " your own messages")
}

func (s *MessageService) notifyOwner(ctx context.Context, flat *models.Flat, message *models.Message) {
	if s.notifier == nil || flat.OwnerID == message.AuthorID {
		return
	}
	event := notifications.Event{
		Type:      notifications.EventNewMessage,
		FlatID:    flat.ID,
		MessageID: message.ID,
		FromUser:  message.AuthorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifier.NotifyUser(ctx, flat.OwnerID, event); err != nil {
		middleware.Logger.WarnContext(ctx, "owner notification failed",
			slog.Uint64("flat_id", uint64(flat.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// CreateMessage posts a top-level comment or, when a rating is supplied, a
// review. A user may hold at most one rated review per flat.
func (s *MessageService) CreateMessage(ctx context.Context, in CreateMessageInput) (*models.Message, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		Content:  in.Content,
		FlatID:   in.FlatID,
		AuthorID: in.AuthorID,
	}

	if in.Rating != nil && in.Rating.Overall != nil {
		if err := in.Rating.Validate(); err != nil {
			return nil, err
		}
		exists, err := s.messageRepo.HasRatedReview(ctx, in.FlatID, in.AuthorID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, models.NewConflictError("You have already reviewed this flat")
		}
		message.Rating = *in.Rating
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if message.HasRating() {
		if err := s.rating.RecomputeFlat(ctx, in.FlatID, TriggerReviewCreated); err != nil {
			return nil, err
		}
	}

	s.notifyOwner(ctx, flat, message)

	return s.messageRepo.GetByID(ctx, message.ID)
}

// CreateReply posts a reply under a top-level message. Threads are one level
// deep and replies never carry ratings.
func (s *MessageService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Message, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	parent, err := s.messageRepo.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsTopLevel() {
		return nil, models.NewValidationError("Replies can only be posted on top-level messages")
	}

	reply := &models.Message{
		Content:  in.Content,
		FlatID:   parent.FlatID,
		AuthorID: in.AuthorID,
		ParentID: &parent.ID,
	}
	if err := s.messageRepo.Create(ctx, reply); err != nil {
		return nil, err
	}

	if flat, err := s.flatRepo.GetByID(ctx, parent.FlatID); err == nil {
		s.notifyOwner(ctx, flat, reply)
	}

	return s.messageRepo.GetByID(ctx, reply.ID)
}

// UpdateMessage edits content and, on top-level messages, the rating. Any
// rating change triggers a snapshot recompute.
func (s *MessageService) UpdateMessage(ctx context.Context, in UpdateMessageInput) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthorOrAdmin(ctx, message, in.UserID, "update"); err != nil {
		return nil, err
	}

	changed := false
	ratingChanged := false

	if in.Content != nil {
		if err := validateContent(*in.Content); err != nil {
			return nil, err
		}
		if *in.Content != message.Content {
			message.Content = *in.Content
			changed = true
		}
	}

	if in.Rating != nil {
		if !message.IsTopLevel() {
			return nil, models.NewValidationError("Replies cannot carry ratings")
		}
		if err := in.Rating.Validate(); err != nil {
			return nil, err
		}
		wasRated := message.HasRating()
		message.Rating = *in.Rating
		changed = true
		ratingChanged = wasRated || message.HasRating()
	}

	if !changed {
		return message, nil
	}

	now := time.Now().UTC()
	message.IsEdited = true
	message.EditedAt = &now
	// Replies must be dropped before Save or GORM upserts the preloaded rows
	message.Replies = nil

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	if ratingChanged {
		if err := s.rating.RecomputeFlat(ctx, message.FlatID, TriggerReviewUpdated); err != nil {
			return nil, err
		}
	}

	return s.messageRepo.GetByID(ctx, message.ID)
}

// SetAttachment uploads an image and attaches it to the message, replacing
// and releasing any previous attachment. Author or admin only.
func (s *MessageService) SetAttachment(ctx context.Context, in SetAttachmentInput) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthorOrAdmin(ctx, message, in.UserID, "update"); err != nil {
		return nil, err
	}

	encoded, err := prepareImage(in.Content, in.ContentType)
	if err != nil {
		return nil, err
	}

	publicID := fmt.Sprintf("messages/%d/%s", message.ID, uuid.New().String())
	uploaded, err := s.images.Upload(ctx, encoded, publicID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	previous := message.AttachmentID
	message.AttachmentURL = uploaded.URL
	message.AttachmentID = uploaded.PublicID
	message.Replies = nil
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	if previous != "" {
		s.releaseAttachment(ctx, previous)
	}

	return s.messageRepo.GetByID(ctx, message.ID)
}

// releaseAttachment drops a stored attachment asset. Best effort; the message
// row is already consistent when this runs.
func (s *MessageService) releaseAttachment(ctx context.Context, publicID string) {
	if s.images == nil || publicID == "" {
		return
	}
	if err := s.images.Delete(ctx, publicID); err != nil {
		middleware.Logger.WarnContext(ctx, "attachment release failed",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteMessage removes a message. Deleting a top-level message takes its
// replies with it, and deleting a rated review recomputes the flat's snapshot
// against the remaining set. Attachment assets of the whole thread are
// released.
func (s *MessageService) DeleteMessage(ctx context.Context, in DeleteMessageInput) error {
	message, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return err
	}
	if err := s.requireAuthorOrAdmin(ctx, message, in.UserID, "delete"); err != nil {
		return err
	}

	if message.IsTopLevel() {
		if err := s.messageRepo.DeleteReplies(ctx, message.ID); err != nil {
			return err
		}
		for _, reply := range message.Replies {
			s.releaseAttachment(ctx, reply.AttachmentID)
		}
	}
	if err := s.messageRepo.Delete(ctx, message.ID); err != nil {
		return err
	}
	s.releaseAttachment(ctx, message.AttachmentID)

	if message.QualifiesForAggregation() || (message.HasRating() && message.IsHidden) {
		if err := s.rating.RecomputeFlat(ctx, message.FlatID, TriggerReviewDeleted); err != nil {
			return err
		}
	}
	return nil
}

// SetVisibility toggles the moderation flag. Admin only. Toggling a rated
// message changes the qualifying set, so the snapshot is recomputed.
func (s *MessageService) SetVisibility(ctx context.Context, in SetVisibilityInput) (*models.Message, error) {
	if s.isAdmin == nil {
		return nil, models.NewForbiddenError("Only admins can change message visibility")
	}
	admin, err := s.isAdmin(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError("Only admins can change message visibility")
	}

	message, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}

	if message.IsHidden == in.Hidden {
		return message, nil
	}

	message.IsHidden = in.Hidden
	message.Replies = nil
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	if message.HasRating() && message.IsTopLevel() {
		if err := s.rating.RecomputeFlat(ctx, message.FlatID, TriggerVisibilityToggle); err != nil {
			return nil, err
		}
	}

	return s.messageRepo.GetByID(ctx, message.ID)
}

// ListMessages returns a flat's threads. Hidden messages are included only for
// admins.
func (s *MessageService) ListMessages(ctx context.Context, flatID, userID uint) ([]models.Message, error) {
	if _, err := s.flatRepo.GetByID(ctx, flatID); err != nil {
		return nil, err
	}

	includeHidden := false
	if userID != 0 && s.isAdmin != nil {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return nil, err
		}
		includeHidden = admin
	}

	return s.messageRepo.ListByFlat(ctx, flatID, includeHidden)
}
