package seed

import (
	"context"
	"fmt"
	"log"

	"flatnest/internal/models"
	"flatnest/internal/repository"
	"flatnest/internal/service"

	"gorm.io/gorm"
)

// Seeder populates the database with demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder bound to the given database.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db)}
}

// ClearAll wipes the seeded tables. Order matters: dependents first.
func (s *Seeder) ClearAll() error {
	tables := []string{"user_favorites", "messages", "flat_images", "flats", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	log.Println("✓ Existing data cleared")
	return nil
}

// Run seeds users, flats, images, messages and favorites, then recomputes the
// rating snapshots so the denormalized aggregates match the seeded reviews.
func (s *Seeder) Run(numUsers, numFlats int) error {
	users, err := s.SeedUsers(numUsers)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	flats, err := s.SeedFlats(users, numFlats)
	if err != nil {
		return fmt.Errorf("seeding flats: %w", err)
	}
	log.Printf("✓ %d flats created", len(flats))

	if err := s.SeedEngagement(users, flats); err != nil {
		return fmt.Errorf("seeding engagement: %w", err)
	}
	log.Println("✓ Messages, reviews and favorites created")

	if err := s.RecomputeRatings(flats); err != nil {
		return fmt.Errorf("recomputing ratings: %w", err)
	}
	log.Println("✓ Rating snapshots computed")
	return nil
}

// SeedUsers creates numUsers accounts plus one known admin.
func (s *Seeder) SeedUsers(numUsers int) ([]*models.User, error) {
	users := make([]*models.User, 0, numUsers+1)

	admin, err := s.factory.CreateUser(func(u *models.User) {
		u.Email = "admin@flatnest.dev"
		u.FirstName = "Ada"
		u.LastName = "Admin"
		u.IsAdmin = true
	})
	if err != nil {
		return nil, err
	}
	users = append(users, admin)

	for i := 0; i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedFlats distributes numFlats listings across the users and attaches
// placeholder images to each.
func (s *Seeder) SeedFlats(users []*models.User, numFlats int) ([]*models.Flat, error) {
	flats := make([]*models.Flat, 0, numFlats)
	for i := 0; i < numFlats; i++ {
		owner := users[s.factory.rng.Intn(len(users))]
		flats = append(flats, s.factory.BuildFlat(owner))
	}
	if err := s.factory.CreateFlatsBatch(flats); err != nil {
		return nil, err
	}
	for _, flat := range flats {
		if err := s.factory.CreateImages(flat, 1+s.factory.rng.Intn(4)); err != nil {
			return nil, err
		}
	}
	return flats, nil
}

// SeedEngagement creates reviews, comments, replies and favorites. At most one
// rated review per author per flat.
func (s *Seeder) SeedEngagement(users []*models.User, flats []*models.Flat) error {
	for _, flat := range flats {
		reviewed := map[uint]bool{flat.OwnerID: true}

		numReviews := s.factory.rng.Intn(5)
		for i := 0; i < numReviews; i++ {
			author := users[s.factory.rng.Intn(len(users))]
			if reviewed[author.ID] {
				continue
			}
			reviewed[author.ID] = true
			review, err := s.factory.CreateReview(author, flat)
			if err != nil {
				return err
			}
			// owners often answer their reviews
			if s.factory.rng.Intn(2) == 0 {
				owner := findUser(users, flat.OwnerID)
				if owner != nil {
					if _, err := s.factory.CreateReply(owner, review); err != nil {
						return err
					}
				}
			}
		}

		numComments := s.factory.rng.Intn(3)
		for i := 0; i < numComments; i++ {
			author := users[s.factory.rng.Intn(len(users))]
			if _, err := s.factory.CreateComment(author, flat); err != nil {
				return err
			}
		}
	}

	// favorites
	for _, user := range users {
		numFavorites := s.factory.rng.Intn(6)
		for i := 0; i < numFavorites; i++ {
			flat := flats[s.factory.rng.Intn(len(flats))]
			if flat.OwnerID == user.ID {
				continue
			}
			err := s.db.Exec(
				"INSERT INTO user_favorites (user_id, flat_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
				user.ID, flat.ID,
			).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// RecomputeRatings runs the aggregation pipeline over every seeded flat.
func (s *Seeder) RecomputeRatings(flats []*models.Flat) error {
	flatRepo := repository.NewFlatRepository(s.db)
	messageRepo := repository.NewMessageRepository(s.db)
	rating := service.NewRatingService(flatRepo, messageRepo)

	ctx := context.Background()
	for _, flat := range flats {
		if err := rating.RecomputeFlat(ctx, flat.ID, service.TriggerReviewCreated); err != nil {
			return err
		}
	}
	return nil
}

func findUser(users []*models.User, id uint) *models.User {
	for _, u := range users {
		if u.ID == id {
			return u
		}
	}
	return nil
}
