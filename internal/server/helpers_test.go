package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flatnest/internal/cache"
	"flatnest/internal/config"
	"flatnest/internal/database"
	"flatnest/internal/models"
	"flatnest/internal/notifications"
	"flatnest/internal/repository"
	"flatnest/internal/service"
	"flatnest/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Str0ng!Passw0rd"

// newTestServer builds a Server on an in-memory database with stubbed external
// collaborators. The Prometheus middleware is left out so repeated test setups
// do not re-register collectors.
func newTestServer(t *testing.T) (*Server, *testutil.ImageStoreStub, *testutil.MailerStub) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	cache.SetClient(nil)
	t.Cleanup(func() { cache.SetClient(nil) })

	cfg := &config.Config{
		Port:                   "0",
		JWTSecret:              "unit-test-secret",
		Env:                    "test",
		DefaultProfileImageURL: "https://static.test/default.jpg",
		DefaultProfileImageID:  "profiles/default",
	}

	store := testutil.NewImageStoreStub()
	mail := &testutil.MailerStub{}

	s := &Server{
		config:      cfg,
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		flatRepo:    repository.NewFlatRepository(db),
		messageRepo: repository.NewMessageRepository(db),
		images:      store,
		mail:        mail,
		notifier:    notifications.NewRedisNotifier(nil),
		hub:         notifications.NewHub(),
	}
	s.ratingService = service.NewRatingService(s.flatRepo, s.messageRepo)
	s.flatService = service.NewFlatService(s.flatRepo, store, s.isAdminByUserID)
	s.userService = service.NewUserService(s.userRepo, s.flatRepo, store, s.isAdminByUserID)
	s.messageService = service.NewMessageService(s.messageRepo, s.flatRepo, s.ratingService, s.notifier, store, s.isAdminByUserID)
	s.cascadeService = service.NewCascadeService(s.flatRepo, s.messageRepo, s.userRepo, store, cfg, s.isAdminByUserID)

	return s, store, mail
}

func newTestApp(t *testing.T, s *Server) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fiberErr, ok := err.(*fiber.Error); ok {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupRoutes(app)
	return app
}

func seedAccount(t *testing.T, s *Server, email string, admin bool) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:          email,
		Password:       string(hash),
		FirstName:      "Test",
		LastName:       "User",
		BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		IsAdmin:        admin,
		ProfileImage:   s.config.DefaultProfileImageURL,
		ProfileImageID: s.config.DefaultProfileImageID,
	}
	require.NoError(t, s.db.Create(user).Error)

	token, err := s.generateToken(user.ID, user.IsAdmin)
	require.NoError(t, err)
	return user, token
}

func seedListing(t *testing.T, s *Server, ownerID uint) *models.Flat {
	t.Helper()
	flat := &models.Flat{
		OwnerID:      ownerID,
		Title:        "Bright loft",
		Description:  "Close to the river",
		PropertyType: models.PropertyTypeLoft,
		City:         "Berlin",
		StreetName:   "Hauptstrasse",
		StreetNumber: "12",
		AreaSize:     54,
		YearBuilt:    1998,
		RentPrice:    1200,
	}
	require.NoError(t, s.db.Create(flat).Error)
	return flat
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// doMultipart uploads a file under the "image" field with extra form values.
func doMultipart(t *testing.T, app *fiber.App, method, path, token string, content []byte, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}
