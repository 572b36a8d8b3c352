package main

import (
	"flag"
	"fmt"
	"os"

	"coparent/backend/config"
	"coparent/backend/database"
	"coparent/backend/migrations"

	"github.com/rs/zerolog/log"
)

func main() {
	seed := flag.Bool("seed", false, "seed development data after migrating")
	flag.Parse()

	cfg := config.Load()

	// Initialize database connection
	if err := database.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.DB.Close()

	// Run migrations
	if err := migrations.RunMigrations(database.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if *seed {
		if !cfg.IsDevelopment() {
			log.Fatal().Msg("Refusing to seed development data in production environment")
		}
		if err := migrations.SeedDevData(database.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed development data")
		}
	}

	fmt.Println("Migrations completed successfully!")
	os.Exit(0)
}
