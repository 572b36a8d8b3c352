package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"coparent/backend/database"

	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	fn   func(ctx context.Context, tx *sql.Tx) error
}

// Add all migrations here in order
var migrations = []migration{
	{"base_schema", CreateBaseSchema},
	{"document_indexes", AddDocumentIndexes},
	{"seed_categories", SeedCategories},
	{"add_index_amounts", AddIndexAmounts},
}

// RunMigrations executes all migrations in the correct order. Each migration
// runs in its own transaction together with its bookkeeping row.
func RunMigrations(db *sql.DB) error {
	ctx := context.Background()
	log.Info().Msg("Running migrations...")

	_, err := database.Exec(ctx, db, `
		CREATE TABLE IF NOT EXISTS migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := database.QueryRow(ctx, db, "SELECT COUNT(*) FROM migrations WHERE name = ?", m.name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			log.Debug().Str("migration", m.name).Msg("Skipping already applied migration")
			continue
		}

		log.Info().Str("migration", m.name).Msg("Applying migration")
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.fn(ctx, tx); err != nil {
		return err
	}
	if _, err := database.Exec(ctx, tx, "INSERT INTO migrations (name) VALUES (?)", m.name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func execAll(ctx context.Context, tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := database.Exec(ctx, tx, stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}
	return nil
}
