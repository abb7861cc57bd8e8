package server

import (
	"fmt"
	"testing"

	"flatnest/internal/models"
	"flatnest/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlatRequest() FlatRequest {
	return FlatRequest{
		Title:         "Sunny studio",
		Description:   "Top floor, lots of light",
		PropertyType:  models.PropertyTypeStudio,
		City:          "Munich",
		StreetName:    "Gartenweg",
		StreetNumber:  "3",
		AreaSize:      32,
		YearBuilt:     2005,
		RentPrice:     950,
		DateAvailable: "2026-10-01",
		Bedrooms:      1,
		Bathrooms:     1,
		MaxGuests:     2,
	}
}

func TestFlatCRUD(t *testing.T) {
	s, _, _ := newTestServer(t)
	app := newTestApp(t, s)

	owner, ownerToken := seedAccount(t, s, "owner@example.com", false)
	_, strangerToken := seedAccount(t, s, "stranger@example.com", false)

	var created models.Flat

	t.Run("create", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/flats/", ownerToken, validFlatRequest())
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		decodeBody(t, resp, &created)
		assert.NotZero(t, created.ID)
		assert.Equal(t, owner.ID, created.OwnerID)
	})

	t.Run("create requires auth", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/flats/", "", validFlatRequest())
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("create validates input", func(t *testing.T) {
		req := validFlatRequest()
		req.PropertyType = "castle"
		resp := doJSON(t, app, fiber.MethodPost, "/api/flats/", ownerToken, req)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("browse is public", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/flats/", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var list FlatListResponse
		decodeBody(t, resp, &list)
		assert.EqualValues(t, 1, list.Total)
		require.Len(t, list.Flats, 1)
	})

	t.Run("city filter narrows the result", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/flats/?city=Nowhere", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var list FlatListResponse
		decodeBody(t, resp, &list)
		assert.Zero(t, list.Total)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/flats/%d", created.ID), "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		missing := doJSON(t, app, fiber.MethodGet, "/api/flats/99999", "", nil)
		assert.Equal(t, fiber.StatusNotFound, missing.StatusCode)
	})

	t.Run("update is owner-only", func(t *testing.T) {
		title := "Renovated studio"
		path := fmt.Sprintf("/api/flats/%d", created.ID)

		resp := doJSON(t, app, fiber.MethodPut, path, strangerToken, FlatUpdateRequest{Title: &title})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		resp = doJSON(t, app, fiber.MethodPut, path, ownerToken, FlatUpdateRequest{Title: &title})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got models.Flat
		decodeBody(t, resp, &got)
		assert.Equal(t, title, got.Title)
	})

	t.Run("delete returns cascade warnings", func(t *testing.T) {
		path := fmt.Sprintf("/api/flats/%d", created.ID)

		resp := doJSON(t, app, fiber.MethodDelete, path, strangerToken, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		resp = doJSON(t, app, fiber.MethodDelete, path, ownerToken, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Message  string   `json:"message"`
			Warnings []string `json:"warnings"`
		}
		decodeBody(t, resp, &body)
		assert.Empty(t, body.Warnings)

		gone := doJSON(t, app, fiber.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusNotFound, gone.StatusCode)
	})
}

func TestFlatImageEndpoints(t *testing.T) {
	s, store, _ := newTestServer(t)
	app := newTestApp(t, s)

	owner, ownerToken := seedAccount(t, s, "owner@example.com", false)
	_, strangerToken := seedAccount(t, s, "stranger@example.com", false)
	flat := seedListing(t, s, owner.ID)

	imagesPath := fmt.Sprintf("/api/flats/%d/images", flat.ID)
	png := testutil.TinyPNG(t, 64, 48)

	t.Run("upload is owner-only", func(t *testing.T) {
		resp := doMultipart(t, app, fiber.MethodPost, imagesPath, strangerToken, png, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	var first, second models.FlatImage

	t.Run("first upload becomes main", func(t *testing.T) {
		resp := doMultipart(t, app, fiber.MethodPost, imagesPath, ownerToken, png,
			map[string]string{"description": "living room"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got models.Flat
		decodeBody(t, resp, &got)
		require.Len(t, got.Images, 1)
		first = got.Images[0]
		assert.True(t, first.IsMain)
		assert.Equal(t, "living room", first.Description)
		assert.Equal(t, 1, store.UploadCount())
	})

	t.Run("upload with isMain takes over", func(t *testing.T) {
		resp := doMultipart(t, app, fiber.MethodPost, imagesPath, ownerToken, png,
			map[string]string{"isMain": "true"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got models.Flat
		decodeBody(t, resp, &got)
		require.Len(t, got.Images, 2)
		second = got.Images[1]
		assert.True(t, second.IsMain)
		assert.False(t, got.Images[0].IsMain)
	})

	t.Run("switch main back by id", func(t *testing.T) {
		path := fmt.Sprintf("/api/flats/%d/images/%d/main", flat.ID, first.ID)
		resp := doJSON(t, app, fiber.MethodPut, path, ownerToken, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got models.Flat
		decodeBody(t, resp, &got)
		assert.Equal(t, first.ID, got.MainImage().ID)
	})

	t.Run("delete main promotes the remaining image", func(t *testing.T) {
		path := fmt.Sprintf("/api/flats/%d/images/%d", flat.ID, first.ID)
		resp := doJSON(t, app, fiber.MethodDelete, path, ownerToken, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got models.Flat
		decodeBody(t, resp, &got)
		require.Len(t, got.Images, 1)
		assert.True(t, got.Images[0].IsMain)
	})

	t.Run("rejects a non-image payload", func(t *testing.T) {
		resp := doMultipart(t, app, fiber.MethodPost, imagesPath, ownerToken,
			[]byte("definitely not an image"), nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
