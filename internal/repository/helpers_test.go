package repository

import (
	"testing"
	"time"

	"flatnest/internal/database"
	"flatnest/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB opens an in-memory database with the full schema for
// integration-style tests.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

// newMockDB wires gorm's postgres driver onto a sqlmock connection for tests
// that assert on generated SQL.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gdb, mock
}

func mustCreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:     email,
		Password:  "x",
		FirstName: "Test",
		LastName:  "User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func mustCreateFlat(t *testing.T, db *gorm.DB, ownerID uint, mutate ...func(*models.Flat)) *models.Flat {
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
		Bedrooms:     2,
	}
	for _, m := range mutate {
		m(flat)
	}
	require.NoError(t, db.Create(flat).Error)
	return flat
}

func ratedMessage(flatID, authorID uint, overall int) *models.Message {
	return &models.Message{
		Content:  "review",
		FlatID:   flatID,
		AuthorID: authorID,
		Rating:   models.ReviewRating{Overall: &overall},
	}
}
