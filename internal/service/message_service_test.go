package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"flatnest/internal/models"
	"flatnest/internal/notifications"
	"flatnest/internal/repository"
	"flatnest/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// notifierStub records delivered events.
type notifierStub struct {
	mu     sync.Mutex
	events []notifications.Event
	users  []uint
}

func (n *notifierStub) NotifyUser(_ context.Context, userID uint, event notifications.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.events = append(n.events, event)
	return nil
}

func adminChecker(db *gorm.DB) func(ctx context.Context, userID uint) (bool, error) {
	return func(ctx context.Context, userID uint) (bool, error) {
		var admin bool
		err := db.WithContext(ctx).Model(&models.User{}).
			Select("is_admin").Where("id = ?", userID).Scan(&admin).Error
		return admin, err
	}
}

func newMessageService(t *testing.T, db *gorm.DB, notifier notifications.Notifier) *MessageService {
	t.Helper()
	return newMessageServiceWithStore(t, db, notifier, testutil.NewImageStoreStub())
}

func newMessageServiceWithStore(t *testing.T, db *gorm.DB, notifier notifications.Notifier, store *testutil.ImageStoreStub) *MessageService {
	t.Helper()
	flatRepo := repository.NewFlatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	rating := NewRatingService(flatRepo, messageRepo)
	return NewMessageService(messageRepo, flatRepo, rating, notifier, store, adminChecker(db))
}

func TestMessageService_CreateMessage(t *testing.T) {
	db := newTestDB(t)
	notifier := &notifierStub{}
	svc := newMessageService(t, db, notifier)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	flat := seedFlat(t, db, owner.ID)

	t.Run("rejects empty and oversized content", func(t *testing.T) {
		_, err := svc.CreateMessage(ctx, CreateMessageInput{AuthorID: guest.ID, FlatID: flat.ID})
		assert.True(t, models.IsCode(err, models.CodeValidationError))

		_, err = svc.CreateMessage(ctx, CreateMessageInput{
			AuthorID: guest.ID, FlatID: flat.ID, Content: strings.Repeat("x", 10001),
		})
		assert.True(t, models.IsCode(err, models.CodeValidationError))
	})

	t.Run("unknown flat", func(t *testing.T) {
		_, err := svc.CreateMessage(ctx, CreateMessageInput{AuthorID: guest.ID, FlatID: 999, Content: "hi"})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("plain comment does not touch the snapshot", func(t *testing.T) {
		msg, err := svc.CreateMessage(ctx, CreateMessageInput{
			AuthorID: guest.ID, FlatID: flat.ID, Content: "is it still available?",
		})
		require.NoError(t, err)
		assert.False(t, msg.HasRating())

		var got models.Flat
		require.NoError(t, db.First(&got, flat.ID).Error)
		assert.Equal(t, 0, got.Ratings.TotalReviews)
	})

	t.Run("rated review updates the snapshot and notifies the owner", func(t *testing.T) {
		msg, err := svc.CreateMessage(ctx, CreateMessageInput{
			AuthorID: guest.ID, FlatID: flat.ID, Content: "lovely place",
			Rating: &models.ReviewRating{Overall: intPtr(5), Cleanliness: intPtr(4)},
		})
		require.NoError(t, err)
		assert.True(t, msg.HasRating())

		var got models.Flat
		require.NoError(t, db.First(&got, flat.ID).Error)
		assert.Equal(t, 5.0, got.Ratings.Overall)
		assert.Equal(t, 1, got.Ratings.TotalReviews)

		require.NotEmpty(t, notifier.users)
		assert.Equal(t, owner.ID, notifier.users[len(notifier.users)-1])
	})

	t.Run("second rated review by the same author conflicts", func(t *testing.T) {
		_, err := svc.CreateMessage(ctx, CreateMessageInput{
			AuthorID: guest.ID, FlatID: flat.ID, Content: "changed my mind",
			Rating: &models.ReviewRating{Overall: intPtr(1)},
		})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("invalid rating score", func(t *testing.T) {
		_, err := svc.CreateMessage(ctx, CreateMessageInput{
			AuthorID: owner.ID, FlatID: flat.ID, Content: "nice",
			Rating: &models.ReviewRating{Overall: intPtr(6)},
		})
		assert.True(t, models.IsCode(err, models.CodeValidationError))
	})
}

func TestMessageService_Replies(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(t, db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	flat := seedFlat(t, db, owner.ID)

	parent, err := svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: guest.ID, FlatID: flat.ID, Content: "any parking?",
	})
	require.NoError(t, err)

	reply, err := svc.CreateReply(ctx, CreateReplyInput{
		AuthorID: owner.ID, ParentID: parent.ID, Content: "yes, in the courtyard",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
	assert.Equal(t, flat.ID, reply.FlatID)

	t.Run("replies to replies are rejected", func(t *testing.T) {
		_, err := svc.CreateReply(ctx, CreateReplyInput{
			AuthorID: guest.ID, ParentID: reply.ID, Content: "thanks",
		})
		assert.True(t, models.IsCode(err, models.CodeValidationError))
	})

	t.Run("deleting the parent removes the thread", func(t *testing.T) {
		require.NoError(t, svc.DeleteMessage(ctx, DeleteMessageInput{
			UserID: guest.ID, MessageID: parent.ID,
		}))

		var count int64
		require.NoError(t, db.Model(&models.Message{}).Where("flat_id = ?", flat.ID).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})
}

func TestMessageService_UpdateMessage(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(t, db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	other := seedUser(t, db, "other@example.com", false)
	admin := seedUser(t, db, "admin@example.com", true)
	flat := seedFlat(t, db, owner.ID)

	review, err := svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: guest.ID, FlatID: flat.ID, Content: "okay stay",
		Rating: &models.ReviewRating{Overall: intPtr(3)},
	})
	require.NoError(t, err)

	t.Run("non-author non-admin is forbidden", func(t *testing.T) {
		content := "hijacked"
		_, err := svc.UpdateMessage(ctx, UpdateMessageInput{
			UserID: other.ID, MessageID: review.ID, Content: &content,
		})
		assert.True(t, models.IsCode(err, models.CodeForbidden))
	})

	t.Run("author edit marks edited and recomputes on rating change", func(t *testing.T) {
		content := "actually it was great"
		updated, err := svc.UpdateMessage(ctx, UpdateMessageInput{
			UserID:    guest.ID,
			MessageID: review.ID,
			Content:   &content,
			Rating:    &models.ReviewRating{Overall: intPtr(5)},
		})
		require.NoError(t, err)
		assert.True(t, updated.IsEdited)
		require.NotNil(t, updated.EditedAt)

		var got models.Flat
		require.NoError(t, db.First(&got, flat.ID).Error)
		assert.Equal(t, 5.0, got.Ratings.Overall)
	})

	t.Run("admin may edit someone else's message", func(t *testing.T) {
		content := "moderated content"
		updated, err := svc.UpdateMessage(ctx, UpdateMessageInput{
			UserID: admin.ID, MessageID: review.ID, Content: &content,
		})
		require.NoError(t, err)
		assert.Equal(t, content, updated.Content)
	})
}

func TestMessageService_Visibility(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(t, db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	admin := seedUser(t, db, "admin@example.com", true)
	flat := seedFlat(t, db, owner.ID)

	review, err := svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: guest.ID, FlatID: flat.ID, Content: "spotless",
		Rating: &models.ReviewRating{Overall: intPtr(5)},
	})
	require.NoError(t, err)

	t.Run("non-admin cannot toggle", func(t *testing.T) {
		_, err := svc.SetVisibility(ctx, SetVisibilityInput{
			UserID: guest.ID, MessageID: review.ID, Hidden: true,
		})
		assert.True(t, models.IsCode(err, models.CodeForbidden))
	})

	t.Run("hiding a rated review drops it from the snapshot", func(t *testing.T) {
		hidden, err := svc.SetVisibility(ctx, SetVisibilityInput{
			UserID: admin.ID, MessageID: review.ID, Hidden: true,
		})
		require.NoError(t, err)
		assert.True(t, hidden.IsHidden)

		var got models.Flat
		require.NoError(t, db.First(&got, flat.ID).Error)
		assert.Equal(t, models.RatingSnapshot{}, got.Ratings)
	})

	t.Run("showing it again restores the snapshot", func(t *testing.T) {
		shown, err := svc.SetVisibility(ctx, SetVisibilityInput{
			UserID: admin.ID, MessageID: review.ID, Hidden: false,
		})
		require.NoError(t, err)
		assert.False(t, shown.IsHidden)

		var got models.Flat
		require.NoError(t, db.First(&got, flat.ID).Error)
		assert.Equal(t, 5.0, got.Ratings.Overall)
		assert.Equal(t, 1, got.Ratings.TotalReviews)
	})

	t.Run("listing hides hidden messages from non-admins", func(t *testing.T) {
		_, err := svc.SetVisibility(ctx, SetVisibilityInput{
			UserID: admin.ID, MessageID: review.ID, Hidden: true,
		})
		require.NoError(t, err)

		visible, err := svc.ListMessages(ctx, flat.ID, guest.ID)
		require.NoError(t, err)
		assert.Empty(t, visible)

		anonymous, err := svc.ListMessages(ctx, flat.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, anonymous)

		forAdmin, err := svc.ListMessages(ctx, flat.ID, admin.ID)
		require.NoError(t, err)
		assert.Len(t, forAdmin, 1)
	})
}

func TestMessageService_DeleteHiddenRatedReviewRecomputes(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(t, db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	other := seedUser(t, db, "second@example.com", false)
	admin := seedUser(t, db, "admin@example.com", true)
	flat := seedFlat(t, db, owner.ID)

	first, err := svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: guest.ID, FlatID: flat.ID, Content: "good",
		Rating: &models.ReviewRating{Overall: intPtr(4)},
	})
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: other.ID, FlatID: flat.ID, Content: "great",
		Rating: &models.ReviewRating{Overall: intPtr(5)},
	})
	require.NoError(t, err)

	_, err = svc.SetVisibility(ctx, SetVisibilityInput{
		UserID: admin.ID, MessageID: first.ID, Hidden: true,
	})
	require.NoError(t, err)

	// Deleting the hidden review must leave the snapshot consistent with the
	// remaining visible review.
	require.NoError(t, svc.DeleteMessage(ctx, DeleteMessageInput{UserID: guest.ID, MessageID: first.ID}))

	var got models.Flat
	require.NoError(t, db.First(&got, flat.ID).Error)
	assert.Equal(t, 5.0, got.Ratings.Overall)
	assert.Equal(t, 1, got.Ratings.TotalReviews)
}

func TestMessageService_Attachments(t *testing.T) {
	db := newTestDB(t)
	store := testutil.NewImageStoreStub()
	svc := newMessageServiceWithStore(t, db, &notifierStub{}, store)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	guest := seedUser(t, db, "guest@example.com", false)
	flat := seedFlat(t, db, owner.ID)

	message, err := svc.CreateMessage(ctx, CreateMessageInput{
		AuthorID: guest.ID, FlatID: flat.ID, Content: "is the kitchen furnished?",
	})
	require.NoError(t, err)

	png := testutil.TinyPNG(t, 32, 32)

	t.Run("only the author may attach", func(t *testing.T) {
		_, err := svc.SetAttachment(ctx, SetAttachmentInput{
			UserID: owner.ID, MessageID: message.ID,
			Filename: "photo.png", Content: png,
		})
		assert.True(t, models.IsCode(err, models.CodeForbidden))
	})

	t.Run("rejects a non-image payload", func(t *testing.T) {
		_, err := svc.SetAttachment(ctx, SetAttachmentInput{
			UserID: guest.ID, MessageID: message.ID,
			Filename: "notes.txt", Content: []byte("plain text"),
		})
		assert.True(t, models.IsCode(err, models.CodeValidationError))
	})

	var firstID string

	t.Run("attaching stores the asset and fills the fields", func(t *testing.T) {
		got, err := svc.SetAttachment(ctx, SetAttachmentInput{
			UserID: guest.ID, MessageID: message.ID,
			Filename: "photo.png", Content: png,
		})
		require.NoError(t, err)
		require.NotEmpty(t, got.AttachmentID)
		assert.Contains(t, got.AttachmentURL, got.AttachmentID)
		assert.Equal(t, 1, store.UploadCount())
		firstID = got.AttachmentID
	})

	t.Run("replacing releases the previous asset", func(t *testing.T) {
		got, err := svc.SetAttachment(ctx, SetAttachmentInput{
			UserID: guest.ID, MessageID: message.ID,
			Filename: "photo2.png", Content: png,
		})
		require.NoError(t, err)
		assert.NotEqual(t, firstID, got.AttachmentID)
		assert.True(t, store.Deleted(firstID))
		assert.Equal(t, 1, store.UploadCount())
	})

	t.Run("deleting the thread releases every attachment", func(t *testing.T) {
		reply, err := svc.CreateReply(ctx, CreateReplyInput{
			AuthorID: owner.ID, ParentID: message.ID, Content: "yes, fully",
		})
		require.NoError(t, err)
		reply, err = svc.SetAttachment(ctx, SetAttachmentInput{
			UserID: owner.ID, MessageID: reply.ID,
			Filename: "kitchen.png", Content: png,
		})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteMessage(ctx, DeleteMessageInput{
			UserID: guest.ID, MessageID: message.ID,
		}))
		assert.True(t, store.Deleted(reply.AttachmentID))
		assert.Zero(t, store.UploadCount())
	})
}
