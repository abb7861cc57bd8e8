// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"flatnest/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// All seeded accounts share this password.
const seedPassword = "FlatnestDemo123!"

var seedPasswordHash string

func init() {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	seedPasswordHash = string(hash)
}

var propertyTypes = []string{
	models.PropertyTypeApartment,
	models.PropertyTypeHouse,
	models.PropertyTypeStudio,
	models.PropertyTypeLoft,
	models.PropertyTypeRoom,
}

var cities = []string{
	"Berlin", "Munich", "Hamburg", "Cologne", "Frankfurt",
	"Amsterdam", "Rotterdam", "Vienna", "Zurich", "Prague",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db  *gorm.DB
	rng *rand.Rand
	seq int
}

// NewFactory creates a Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{db: db, rng: rand.New(rand.NewSource(seed))}
}

// CreateUser constructs and persists a sample account. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	age := 18 + f.rng.Intn(50)
	// The counter keeps generated addresses unique within a run, the email
	// column has a unique constraint.
	f.seq++
	user := &models.User{
		Email:        fmt.Sprintf("%s%d@%s", gofakeit.Username(), f.seq, gofakeit.DomainName()),
		Password:     seedPasswordHash,
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		BirthDate:    time.Now().AddDate(-age, -f.rng.Intn(12), -f.rng.Intn(28)),
		ProfileImage: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildFlat constructs a listing without persisting it. Useful for batching.
func (f *Factory) BuildFlat(owner *models.User, overrides ...func(*models.Flat)) *models.Flat {
	city := cities[f.rng.Intn(len(cities))]
	flat := &models.Flat{
		OwnerID:       owner.ID,
		Title:         fmt.Sprintf("%s %s in %s", gofakeit.AdjectiveDescriptive(), propertyTypes[f.rng.Intn(len(propertyTypes))], city),
		Description:   gofakeit.Paragraph(1, 3, 8, "\n"),
		PropertyType:  propertyTypes[f.rng.Intn(len(propertyTypes))],
		City:          city,
		StreetName:    gofakeit.StreetName(),
		StreetNumber:  fmt.Sprintf("%d", 1+f.rng.Intn(200)),
		AreaSize:      float64(20 + f.rng.Intn(180)),
		YearBuilt:     1950 + f.rng.Intn(75),
		RentPrice:     float64(400 + f.rng.Intn(2600)),
		DateAvailable: time.Now().AddDate(0, 0, f.rng.Intn(90)),
		Bedrooms:      1 + f.rng.Intn(4),
		Bathrooms:     1 + f.rng.Intn(2),
		MaxGuests:     1 + f.rng.Intn(6),
	}

	// realistic created_at spread over the last quarter
	daysBack := f.rng.Intn(90)
	flat.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(f.rng.Intn(24))*time.Hour)

	for _, override := range overrides {
		override(flat)
	}
	return flat
}

// CreateFlatsBatch persists multiple listings in a single DB call.
func (f *Factory) CreateFlatsBatch(flats []*models.Flat) error {
	if len(flats) == 0 {
		return nil
	}
	return f.db.Create(&flats).Error
}

// CreateImages attaches placeholder image records to a flat. The first one is
// flagged main.
func (f *Factory) CreateImages(flat *models.Flat, count int) error {
	for i := 0; i < count; i++ {
		img := models.FlatImage{
			FlatID:      flat.ID,
			URL:         fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", gofakeit.UUID()),
			PublicID:    fmt.Sprintf("flats/%d/seed-%d", flat.ID, i),
			Description: gofakeit.Sentence(4),
			IsMain:      i == 0,
			Position:    i,
			UploadedAt:  time.Now().UTC(),
		}
		if err := f.db.Create(&img).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateReview persists a rated top-level review by the author on the flat.
func (f *Factory) CreateReview(author *models.User, flat *models.Flat, overrides ...func(*models.Message)) (*models.Message, error) {
	overall := 1 + f.rng.Intn(5)
	msg := &models.Message{
		Content:  gofakeit.Paragraph(1, 2, 6, " "),
		FlatID:   flat.ID,
		AuthorID: author.ID,
		Rating: models.ReviewRating{
			Overall:       &overall,
			Cleanliness:   f.maybeScore(),
			Communication: f.maybeScore(),
			Location:      f.maybeScore(),
			Accuracy:      f.maybeScore(),
			Value:         f.maybeScore(),
		},
	}
	for _, override := range overrides {
		override(msg)
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateComment persists an unrated top-level message.
func (f *Factory) CreateComment(author *models.User, flat *models.Flat) (*models.Message, error) {
	msg := &models.Message{
		Content:  gofakeit.Question(),
		FlatID:   flat.ID,
		AuthorID: author.ID,
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateReply persists a reply under a top-level message.
func (f *Factory) CreateReply(author *models.User, parent *models.Message) (*models.Message, error) {
	msg := &models.Message{
		Content:  gofakeit.Sentence(10),
		FlatID:   parent.FlatID,
		AuthorID: author.ID,
		ParentID: &parent.ID,
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (f *Factory) maybeScore() *int {
	if f.rng.Intn(3) == 0 {
		return nil
	}
	s := 1 + f.rng.Intn(5)
	return &s
}
