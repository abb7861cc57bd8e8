// Command main runs the database seeder for Flatnest.
package main

import (
	"flag"
	"log"

	"flatnest/internal/config"
	"flatnest/internal/database"
	"flatnest/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numFlats := flag.Int("flats", 150, "Number of flats to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named seeder preset (e.g. Standard)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring other flags)\n", *preset)
	} else {
		log.Printf("Target: %d users, %d flats, clean=%v\n", *numUsers, *numFlats, *shouldClean)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(database.DB)

	if *preset != "" {
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatalf("❌ Preset seeding failed: %v", err)
		}
	} else {
		if *shouldClean {
			if err := s.ClearAll(); err != nil {
				log.Fatalf("❌ Cleanup failed: %v", err)
			}
		}
		if err := s.Run(*numUsers, *numFlats); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Println("📧 All test users have the password: FlatnestDemo123!")
}
