package service

import (
	"context"
	"testing"

	"flatnest/internal/models"
	"flatnest/internal/repository"
	"flatnest/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newFlatService(t *testing.T, db *gorm.DB, store *testutil.ImageStoreStub) *FlatService {
	t.Helper()
	return NewFlatService(repository.NewFlatRepository(db), store, adminChecker(db))
}

func validCreateFlatInput(ownerID uint) CreateFlatInput {
	return CreateFlatInput{
		OwnerID:      ownerID,
		Title:        "Sunny studio",
		Description:  "Top floor, lots of light",
		PropertyType: models.PropertyTypeStudio,
		City:         "Munich",
		StreetName:   "Gartenweg",
		StreetNumber: "3",
		AreaSize:     32,
		YearBuilt:    2005,
		RentPrice:    950,
		Bedrooms:     1,
		Bathrooms:    1,
		MaxGuests:    2,
	}
}

func TestFlatService_CreateFlat_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := newFlatService(t, db, testutil.NewImageStoreStub())
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com", false)

	cases := []struct {
		name   string
		mutate func(*CreateFlatInput)
	}{
		{"missing title", func(in *CreateFlatInput) { in.Title = "" }},
		{"missing description", func(in *CreateFlatInput) { in.Description = "" }},
		{"bad property type", func(in *CreateFlatInput) { in.PropertyType = "castle" }},
		{"missing city", func(in *CreateFlatInput) { in.City = "" }},
		{"zero area", func(in *CreateFlatInput) { in.AreaSize = 0 }},
		{"negative price", func(in *CreateFlatInput) { in.RentPrice = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateFlatInput(owner.ID)
			tc.mutate(&in)
			_, err := svc.CreateFlat(ctx, in)
			assert.True(t, models.IsCode(err, models.CodeValidationError))
		})
	}

	t.Run("valid input persists", func(t *testing.T) {
		flat, err := svc.CreateFlat(ctx, validCreateFlatInput(owner.ID))
		require.NoError(t, err)
		assert.NotZero(t, flat.ID)
		assert.Equal(t, owner.ID, flat.OwnerID)
	})
}

func TestFlatService_UpdateFlat_Authorization(t *testing.T) {
	db := newTestDB(t)
	svc := newFlatService(t, db, testutil.NewImageStoreStub())
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	other := seedUser(t, db, "other@example.com", false)
	admin := seedUser(t, db, "admin@example.com", true)
	flat := seedFlat(t, db, owner.ID)

	newTitle := "Renovated loft"

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := svc.UpdateFlat(ctx, UpdateFlatInput{
			UserID: other.ID, FlatID: flat.ID, Title: &newTitle,
		})
		assert.True(t, models.IsCode(err, models.CodeForbidden))
	})

	t.Run("owner may update", func(t *testing.T) {
		updated, err := svc.UpdateFlat(ctx, UpdateFlatInput{
			UserID: owner.ID, FlatID: flat.ID, Title: &newTitle,
		})
		require.NoError(t, err)
		assert.Equal(t, newTitle, updated.Title)
	})

	t.Run("admin may update", func(t *testing.T) {
		price := 1500.0
		updated, err := svc.UpdateFlat(ctx, UpdateFlatInput{
			UserID: admin.ID, FlatID: flat.ID, RentPrice: &price,
		})
		require.NoError(t, err)
		assert.Equal(t, price, updated.RentPrice)
	})
}

func TestFlatService_ImageLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := testutil.NewImageStoreStub()
	svc := newFlatService(t, db, store)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false)
	flat := seedFlat(t, db, owner.ID)

	upload := func(t *testing.T, main bool) *models.Flat {
		t.Helper()
		got, err := svc.UploadImage(ctx, UploadFlatImageInput{
			UserID:      owner.ID,
			FlatID:      flat.ID,
			Filename:    "room.png",
			ContentType: "image/png",
			Content:     testutil.TinyPNG(t, 64, 48),
			IsMain:      main,
		})
		require.NoError(t, err)
		return got
	}

	t.Run("first image becomes main automatically", func(t *testing.T) {
		got := upload(t, false)
		require.Len(t, got.Images, 1)
		assert.True(t, got.Images[0].IsMain)
		assert.Equal(t, 1, store.UploadCount())
	})

	t.Run("uploading with isMain moves the flag", func(t *testing.T) {
		got := upload(t, true)
		require.Len(t, got.Images, 2)
		main := got.MainImage()
		require.NotNil(t, main)
		assert.Equal(t, got.Images[1].ID, main.ID)
		assert.False(t, got.Images[0].IsMain)
	})

	t.Run("rejects a non-image payload", func(t *testing.T) {
		_, err := svc.UploadImage(ctx, UploadFlatImageInput{
			UserID:      owner.ID,
			FlatID:      flat.ID,
			Filename:    "notes.txt",
			ContentType: "text/plain",
			Content:     []byte("not an image"),
		})
		assert.True(t, models.IsCode(err, models.CodeValidationError))
	})

	t.Run("set main image by id", func(t *testing.T) {
		current, err := svc.GetFlat(ctx, flat.ID)
		require.NoError(t, err)
		require.Len(t, current.Images, 2)

		got, err := svc.SetMainImage(ctx, FlatImageRefInput{
			UserID: owner.ID, FlatID: flat.ID, ImageID: current.Images[0].ID,
		})
		require.NoError(t, err)
		main := got.MainImage()
		require.NotNil(t, main)
		assert.Equal(t, current.Images[0].ID, main.ID)
	})

	t.Run("unknown image id is NotFound", func(t *testing.T) {
		_, err := svc.SetMainImage(ctx, FlatImageRefInput{
			UserID: owner.ID, FlatID: flat.ID, ImageID: 9999,
		})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("deleting the main image promotes the next one", func(t *testing.T) {
		current, err := svc.GetFlat(ctx, flat.ID)
		require.NoError(t, err)
		main := current.MainImage()
		require.NotNil(t, main)
		mainPublicID := main.PublicID

		got, err := svc.DeleteImage(ctx, FlatImageRefInput{
			UserID: owner.ID, FlatID: flat.ID, ImageID: main.ID,
		})
		require.NoError(t, err)
		require.Len(t, got.Images, 1)
		assert.True(t, got.Images[0].IsMain)
		assert.True(t, store.Deleted(mainPublicID))
	})
}
