package seed

import (
	"testing"

	"flatnest/internal/database"
	"flatnest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

func TestSeederRun(t *testing.T) {
	db := newSeedDB(t)
	seeder := NewSeeder(db)

	require.NoError(t, seeder.Run(5, 10))

	var userCount, flatCount, imageCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	require.NoError(t, db.Model(&models.Flat{}).Count(&flatCount).Error)
	require.NoError(t, db.Model(&models.FlatImage{}).Count(&imageCount).Error)

	assert.EqualValues(t, 6, userCount, "5 users plus the admin")
	assert.EqualValues(t, 10, flatCount)
	assert.GreaterOrEqual(t, imageCount, flatCount, "every flat has at least one image")

	t.Run("known admin account exists", func(t *testing.T) {
		var admin models.User
		require.NoError(t, db.Where("email = ?", "admin@flatnest.dev").First(&admin).Error)
		assert.True(t, admin.IsAdmin)
	})

	t.Run("every flat has exactly one main image", func(t *testing.T) {
		var flats []models.Flat
		require.NoError(t, db.Preload("Images").Find(&flats).Error)
		for _, flat := range flats {
			mains := 0
			for _, img := range flat.Images {
				if img.IsMain {
					mains++
				}
			}
			assert.Equal(t, 1, mains, "flat %d", flat.ID)
		}
	})

	t.Run("at most one rated review per author per flat", func(t *testing.T) {
		type pair struct {
			FlatID   uint
			AuthorID uint
			N        int64
		}
		var pairs []pair
		require.NoError(t, db.Model(&models.Message{}).
			Select("flat_id, author_id, COUNT(*) as n").
			Where("parent_id IS NULL AND rating_overall IS NOT NULL").
			Group("flat_id, author_id").
			Having("COUNT(*) > 1").
			Scan(&pairs).Error)
		assert.Empty(t, pairs)
	})

	t.Run("snapshots match the qualifying reviews", func(t *testing.T) {
		var flats []models.Flat
		require.NoError(t, db.Find(&flats).Error)
		for _, flat := range flats {
			var reviews int64
			require.NoError(t, db.Model(&models.Message{}).
				Where("flat_id = ? AND parent_id IS NULL AND is_hidden = ? AND rating_overall IS NOT NULL",
					flat.ID, false).
				Count(&reviews).Error)
			assert.EqualValues(t, reviews, flat.Ratings.TotalReviews, "flat %d", flat.ID)
		}
	})

	t.Run("ClearAll empties the seeded tables", func(t *testing.T) {
		require.NoError(t, seeder.ClearAll())
		var n int64
		require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}
