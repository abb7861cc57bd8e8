package repository

import (
	"context"
	"testing"

	"flatnest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_QualifyingReviews(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	owner := mustCreateUser(t, db, "owner@example.com")
	alice := mustCreateUser(t, db, "alice@example.com")
	bob := mustCreateUser(t, db, "bob@example.com")
	flat := mustCreateFlat(t, db, owner.ID)

	review := ratedMessage(flat.ID, alice.ID, 4)
	require.NoError(t, repo.Create(ctx, review))

	hidden := ratedMessage(flat.ID, bob.ID, 2)
	hidden.IsHidden = true
	require.NoError(t, repo.Create(ctx, hidden))

	comment := &models.Message{Content: "is it still available?", FlatID: flat.ID, AuthorID: bob.ID}
	require.NoError(t, repo.Create(ctx, comment))

	reply := &models.Message{Content: "yes", FlatID: flat.ID, AuthorID: owner.ID, ParentID: &review.ID}
	require.NoError(t, repo.Create(ctx, reply))

	t.Run("only visible rated top-level reviews qualify", func(t *testing.T) {
		qualifying, err := repo.ListQualifying(ctx, flat.ID)
		require.NoError(t, err)
		require.Len(t, qualifying, 1)
		assert.Equal(t, review.ID, qualifying[0].ID)
	})

	t.Run("HasRatedReview counts hidden reviews too", func(t *testing.T) {
		has, err := repo.HasRatedReview(ctx, flat.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasRatedReview(ctx, flat.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasRatedReview(ctx, flat.ID, owner.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("ListByFlat filters hidden unless asked", func(t *testing.T) {
		visible, err := repo.ListByFlat(ctx, flat.ID, false)
		require.NoError(t, err)
		assert.Len(t, visible, 2)

		all, err := repo.ListByFlat(ctx, flat.ID, true)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("replies ride along with their parent", func(t *testing.T) {
		got, err := repo.GetByID(ctx, review.ID)
		require.NoError(t, err)
		require.Len(t, got.Replies, 1)
		assert.Equal(t, reply.ID, got.Replies[0].ID)
	})

	t.Run("DeleteReplies closes the thread", func(t *testing.T) {
		require.NoError(t, repo.DeleteReplies(ctx, review.ID))
		got, err := repo.GetByID(ctx, review.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Replies)
	})

	t.Run("DeleteByFlat clears the board", func(t *testing.T) {
		require.NoError(t, repo.DeleteByFlat(ctx, flat.ID))
		count, err := repo.CountByFlat(ctx, flat.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestMessageRepository_Delete(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	owner := mustCreateUser(t, db, "owner@example.com")
	flat := mustCreateFlat(t, db, owner.ID)
	msg := ratedMessage(flat.ID, owner.ID, 5)
	require.NoError(t, repo.Create(ctx, msg))

	require.NoError(t, repo.Delete(ctx, msg.ID))
	assert.True(t, models.IsCode(repo.Delete(ctx, msg.ID), models.CodeNotFound))

	_, err := repo.GetByID(ctx, msg.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
