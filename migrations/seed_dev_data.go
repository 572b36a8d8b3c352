package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coparent/backend/database"

	"github.com/rs/zerolog/log"
)

// Dev user ids, also accepted by the development auth bypass.
const (
	DevAdminID   = "admin-user-1"
	DevLawyerID  = "lawyer-user-1"
	DevJudgeID   = "judge-user-1"
	DevParent1ID = "parent-user-1"
	DevParent2ID = "parent-user-2"
	DevCaseID    = "dev-case-1"
)

// SeedDevData inserts a small set of users and one case for local
// development. It is idempotent and must never run in production.
func SeedDevData(db *sql.DB) error {
	ctx := context.Background()
	log.Info().Msg("Seeding development data...")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	users := []struct {
		id, email, first, last, role string
		staff, superuser             bool
	}{
		{DevAdminID, "admin@coparent.local", "Ada", "Admin", "administrator", true, true},
		{DevLawyerID, "lawyer@coparent.local", "Leo", "Lawyer", "lawyer", true, false},
		{DevJudgeID, "judge@coparent.local", "Jade", "Judge", "judge", true, false},
		{DevParent1ID, "parent1@coparent.local", "Paula", "Parent", "parent", false, false},
		{DevParent2ID, "parent2@coparent.local", "Peter", "Parent", "parent", false, false},
	}

	for _, u := range users {
		var count int
		if err := database.QueryRow(ctx, tx, "SELECT COUNT(*) FROM users WHERE id = ?", u.id).Scan(&count); err != nil {
			return fmt.Errorf("failed to check if user exists: %w", err)
		}
		if count > 0 {
			continue
		}
		_, err := database.Exec(ctx, tx, `
			INSERT INTO users (id, email, first_name, last_name, role, is_staff, is_superuser, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, u.id, u.email, u.first, u.last, u.role, u.staff, u.superuser, now)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.id, err)
		}
	}

	var count int
	if err := database.QueryRow(ctx, tx, "SELECT COUNT(*) FROM cases WHERE id = ?", DevCaseID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check dev case: %w", err)
	}
	if count == 0 {
		statements := []struct {
			query string
			args  []any
		}{
			{`INSERT INTO cases (id, parent1_id, parent2_id, draft, parent1_percentage, parent2_percentage, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				[]any{DevCaseID, DevParent1ID, DevParent2ID, false, "50", "50", now, now}},
			{"INSERT INTO case_lawyers (case_id, user_id) VALUES (?, ?)", []any{DevCaseID, DevLawyerID}},
			{"INSERT INTO case_judges (case_id, user_id) VALUES (?, ?)", []any{DevCaseID, DevJudgeID}},
			{`INSERT INTO children (id, case_id, first_name, last_name, birth_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				[]any{"dev-child-1", DevCaseID, "Noa", "Parent", "2016-04-12", now}},
		}
		for _, s := range statements {
			if _, err := database.Exec(ctx, tx, s.query, s.args...); err != nil {
				return fmt.Errorf("failed to seed dev case: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().Msg("Development data seeded successfully")
	return nil
}
