package migrations

import (
	"database/sql"
	"testing"

	"coparent/backend/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(database.DriverSQLite, "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&applied))
	assert.Equal(t, len(migrations), applied)

	var types, categories int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM category_types").Scan(&types))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&categories))
	assert.Equal(t, 4, types)
	assert.Equal(t, 7, categories)
}

func TestOtherTypeIsSeeded(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, RunMigrations(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM category_types WHERE name = ?", OtherTypeName).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestIndexHistoryYearIsUnique(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, RunMigrations(db))

	insert := "INSERT INTO index_history (id, year, mode, value, amount, created_at) VALUES (?, 2025, 'percentage', 3, 0, CURRENT_TIMESTAMP)"
	_, err := db.Exec(insert, "a")
	require.NoError(t, err)
	_, err = db.Exec(insert, "b")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestSeedDevData(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, RunMigrations(db))

	require.NoError(t, SeedDevData(db))
	require.NoError(t, SeedDevData(db))

	var users, links int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM case_lawyers WHERE case_id = ?", DevCaseID).Scan(&links))
	assert.Equal(t, 5, users)
	assert.Equal(t, 1, links)

	var role string
	require.NoError(t, db.QueryRow("SELECT role FROM users WHERE id = ?", DevAdminID).Scan(&role))
	assert.Equal(t, "administrator", role)
}
