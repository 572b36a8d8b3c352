package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateBaseSchema creates the ledger tables. The DDL is kept to the subset
// understood by both sqlite and PostgreSQL.
func CreateBaseSchema(ctx context.Context, tx *sql.Tx) error {
	err := execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'parent',
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			national_number TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cases (
			id TEXT PRIMARY KEY,
			parent1_id TEXT NOT NULL REFERENCES users(id),
			parent2_id TEXT REFERENCES users(id),
			draft BOOLEAN NOT NULL DEFAULT TRUE,
			parent1_percentage NUMERIC(5,2) NOT NULL DEFAULT 50,
			parent2_percentage NUMERIC(5,2) NOT NULL DEFAULT 50,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS children (
			id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			birth_date DATE NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS category_types (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type_id TEXT REFERENCES category_types(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id),
			submitted_by TEXT NOT NULL REFERENCES users(id),
			amount_cents BIGINT NOT NULL,
			date DATE NOT NULL,
			category_id TEXT NOT NULL REFERENCES categories(id),
			description TEXT NOT NULL DEFAULT '',
			attachment_key TEXT NOT NULL DEFAULT '',
			attachment_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS index_history (
			id TEXT PRIMARY KEY,
			year INTEGER NOT NULL UNIQUE,
			mode TEXT NOT NULL,
			value NUMERIC(12,2) NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS case_lawyers (
			case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (case_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS case_judges (
			case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (case_id, user_id)
		)`,
	})
	if err != nil {
		return fmt.Errorf("failed to create base schema: %w", err)
	}
	return nil
}

// AddDocumentIndexes adds the indexes used by the reconciliation and review
// queries.
func AddDocumentIndexes(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, []string{
		`CREATE INDEX IF NOT EXISTS idx_documents_case_date ON documents (case_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_case_status ON documents (case_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_parent1 ON cases (parent1_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_parent2 ON cases (parent2_id)`,
	})
}
