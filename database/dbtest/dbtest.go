// Package dbtest opens a migrated in-memory database for tests.
package dbtest

import (
	"database/sql"
	"testing"

	"coparent/backend/database"
	"coparent/backend/migrations"

	"github.com/stretchr/testify/require"
)

// Open installs a fresh, fully migrated in-memory sqlite database as
// database.DB for the duration of the test.
//
// The pool is limited to one connection so every query sees the same memory
// database. Code running inside database.WithTx must therefore only use the
// transaction it was given.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(database.DriverSQLite, "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	prevDB, prevDriver := database.DB, database.Driver
	database.DB, database.Driver = db, database.DriverSQLite
	t.Cleanup(func() {
		db.Close()
		database.DB, database.Driver = prevDB, prevDriver
	})

	require.NoError(t, migrations.RunMigrations(db))
	return db
}
