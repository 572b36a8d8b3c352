package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"coparent/backend/database"
	"coparent/backend/database/dbtest"
	"coparent/backend/events"
	"coparent/backend/models"
	"coparent/backend/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// fixture is a migrated database with one active case between two parents,
// a linked lawyer and judge, and a few outsiders.
type fixture struct {
	t        *testing.T
	events   *events.Recorder
	caseID   string
	parent1  models.Principal
	parent2  models.Principal
	lawyer   models.Principal
	judge    models.Principal
	admin    models.Principal
	stranger models.Principal
	outsider models.Principal // an unlinked lawyer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dbtest.Open(t)

	rec := &events.Recorder{}
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	prevEvents, prevStore, prevNow := Events, Attachments, Now
	Events, Attachments = rec, store
	Now = func() time.Time { return time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { Events, Attachments, Now = prevEvents, prevStore, prevNow })

	f := &fixture{
		t:        t,
		events:   rec,
		parent1:  createUser(t, "alice", models.RoleParent),
		parent2:  createUser(t, "bob", models.RoleParent),
		lawyer:   createUser(t, "lena", models.RoleLawyer),
		judge:    createUser(t, "jules", models.RoleJudge),
		admin:    createUser(t, "root", models.RoleAdministrator),
		stranger: createUser(t, "carol", models.RoleParent),
		outsider: createUser(t, "otto", models.RoleLawyer),
	}
	f.caseID = f.newCase(f.parent1.UserID, f.parent2.UserID)
	f.link("case_lawyers", f.lawyer.UserID)
	f.link("case_judges", f.judge.UserID)
	return f
}

func createUser(t *testing.T, id, role string) models.Principal {
	t.Helper()
	staff := role != models.RoleParent
	_, err := database.Exec(ctx, database.DB, `
		INSERT INTO users (id, email, first_name, last_name, role, is_staff, is_superuser, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, id+"@example.com", capitalize(id), "Test", role, staff, false, time.Now().UTC())
	require.NoError(t, err)
	return models.Principal{UserID: id, Role: role, IsStaff: staff}
}

func (f *fixture) newCase(parent1, parent2 string) string {
	f.t.Helper()
	id := uuid.NewString()
	var p2 any
	if parent2 != "" {
		p2 = parent2
	}
	now := time.Now().UTC()
	_, err := database.Exec(ctx, database.DB, `
		INSERT INTO cases (id, parent1_id, parent2_id, draft, parent1_percentage, parent2_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, parent1, p2, parent2 == "", "50", "50", now, now)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) link(table, userID string) {
	f.t.Helper()
	_, err := database.Exec(ctx, database.DB, "INSERT INTO "+table+" (case_id, user_id) VALUES (?, ?)", f.caseID, userID)
	require.NoError(f.t, err)
}

func (f *fixture) categoryID(name string) string {
	f.t.Helper()
	var id string
	require.NoError(f.t, database.QueryRow(ctx, database.DB, "SELECT id FROM categories WHERE name = ?", name).Scan(&id))
	return id
}

func (f *fixture) addChild(caseID, first string) {
	f.t.Helper()
	_, err := database.Exec(ctx, database.DB,
		"INSERT INTO children (id, case_id, first_name, last_name, birth_date, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), caseID, first, "Test", "2015-01-01", time.Now().UTC())
	require.NoError(f.t, err)
}

// addDoc inserts a document directly, bypassing submission rules.
func (f *fixture) addDoc(caseID, userID, category string, cents int64, date, status string) string {
	f.t.Helper()
	id := uuid.NewString()
	_, err := database.Exec(ctx, database.DB, `
		INSERT INTO documents (id, case_id, user_id, submitted_by, amount_cents, date, category_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, caseID, userID, userID, cents, date, f.categoryID(category), status, time.Now().UTC())
	require.NoError(f.t, err)
	return id
}

func (f *fixture) cents(docID string) int64 {
	f.t.Helper()
	var cents int64
	require.NoError(f.t, database.QueryRow(ctx, database.DB, "SELECT amount_cents FROM documents WHERE id = ?", docID).Scan(&cents))
	return cents
}

func (f *fixture) status(docID string) string {
	f.t.Helper()
	var status string
	require.NoError(f.t, database.QueryRow(ctx, database.DB, "SELECT status FROM documents WHERE id = ?", docID).Scan(&status))
	return status
}

func (f *fixture) count(query string, args ...any) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, database.QueryRow(ctx, database.DB, query, args...).Scan(&n))
	return n
}

func validationField(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Field
}

func dbQueryRow(query string, args ...any) *sql.Row {
	return database.QueryRow(ctx, database.DB, query, args...)
}

func dbExec(query string, args ...any) (sql.Result, error) {
	return database.Exec(ctx, database.DB, query, args...)
}
