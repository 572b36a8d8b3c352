package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"coparent/backend/database"
	"coparent/backend/models"
	"coparent/backend/security"

	"github.com/rs/zerolog/log"
)

const userColumns = "id, email, first_name, last_name, role, is_staff, is_superuser, national_number, created_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var email sql.NullString
	var national string
	err := row.Scan(&u.ID, &email, &u.FirstName, &u.LastName, &u.Role, &u.IsStaff, &u.IsSuperuser, &national, &u.CreatedAt)
	if err != nil {
		return u, err
	}
	u.Email = email.String
	u.NationalNumber = revealNationalNumber(u.ID, national)
	return u, nil
}

func revealNationalNumber(userID, stored string) string {
	if stored == "" || !security.Enabled() {
		return ""
	}
	digits, err := security.Decrypt(stored)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Could not decrypt national number")
		return ""
	}
	return security.FormatNationalNumber(digits)
}

// GetUser loads one user by id.
func GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(database.QueryRow(ctx, database.DB, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, notFound("user")
	}
	if err != nil {
		return u, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

// GetPrincipal resolves the identity a request acts as.
func GetPrincipal(ctx context.Context, userID string) (models.Principal, error) {
	var p models.Principal
	err := database.QueryRow(ctx, database.DB,
		"SELECT id, role, is_staff, is_superuser FROM users WHERE id = ?", userID,
	).Scan(&p.UserID, &p.Role, &p.IsStaff, &p.IsSuperuser)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("user")
	}
	if err != nil {
		return p, fmt.Errorf("failed to load principal: %w", err)
	}
	return p, nil
}

// SyncUserInput is the profile an authenticated user reports about itself.
type SyncUserInput struct {
	ID             string `json:"-"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	NationalNumber string `json:"nationalNumber"`
	// Administrator is set when the email is listed in ADMIN_EMAILS.
	Administrator bool `json:"-"`
}

// SyncUser creates the user on first sign-in and refreshes the profile
// afterwards. New users are parents unless flagged as administrator.
func SyncUser(ctx context.Context, in SyncUserInput) (models.User, error) {
	if in.ID == "" {
		return models.User{}, invalid("id", "user id is required")
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	var encrypted string
	if in.NationalNumber != "" {
		digits, err := security.CleanNationalNumber(in.NationalNumber)
		if err != nil {
			return models.User{}, invalid("nationalNumber", "%s", err.Error())
		}
		if !security.Enabled() {
			return models.User{}, invalid("nationalNumber", "national numbers cannot be stored without an encryption key")
		}
		if encrypted, err = security.Encrypt(digits); err != nil {
			return models.User{}, fmt.Errorf("failed to encrypt national number: %w", err)
		}
	}

	var email any
	if in.Email != "" {
		email = in.Email
	}

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		var role string
		err := database.QueryRow(ctx, tx, "SELECT role FROM users WHERE id = ?", in.ID).Scan(&role)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			role = models.RoleParent
			if in.Administrator {
				role = models.RoleAdministrator
			}
			_, err = database.Exec(ctx, tx, `
				INSERT INTO users (id, email, first_name, last_name, role, is_staff, is_superuser, national_number, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, in.ID, email, in.FirstName, in.LastName, role, role != models.RoleParent, false, encrypted, Now().UTC())
			if err == nil {
				log.Info().Str("user_id", in.ID).Str("role", role).Msg("Created user")
			}
			return err
		case err != nil:
			return err
		}

		if in.Administrator && role != models.RoleAdministrator {
			role = models.RoleAdministrator
			log.Info().Str("user_id", in.ID).Msg("Promoting listed admin email")
		}
		_, err = database.Exec(ctx, tx, `
			UPDATE users SET
				email = COALESCE(?, email),
				first_name = CASE WHEN ? <> '' THEN ? ELSE first_name END,
				last_name = CASE WHEN ? <> '' THEN ? ELSE last_name END,
				national_number = CASE WHEN ? <> '' THEN ? ELSE national_number END,
				role = ?,
				is_staff = ?
			WHERE id = ?
		`, email, in.FirstName, in.FirstName, in.LastName, in.LastName, encrypted, encrypted,
			role, role != models.RoleParent, in.ID)
		return err
	})
	if database.IsUniqueViolation(err) {
		return models.User{}, invalid("email", "email is already used by another account")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to sync user: %w", err)
	}
	return GetUser(ctx, in.ID)
}

// ListUsersByRole lists users, optionally restricted to one role. Lawyers
// need it to pick parents when creating cases.
func ListUsersByRole(ctx context.Context, p models.Principal, role string) ([]models.User, error) {
	if !p.IsAdmin() && p.Role != models.RoleLawyer {
		return nil, forbidden("list users")
	}
	if role != "" && !models.ValidRole(role) {
		return nil, invalid("role", "unknown role %q", role)
	}

	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, role)
	}
	query += " ORDER BY last_name, first_name, id"

	rows, err := database.Query(ctx, database.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserRole changes a user's role. Administrators only, and an
// administrator cannot demote itself.
func SetUserRole(ctx context.Context, p models.Principal, targetID, role string) error {
	if !p.IsAdmin() {
		return forbidden("change roles")
	}
	if !models.ValidRole(role) {
		return invalid("role", "unknown role %q", role)
	}
	if targetID == p.UserID && role != models.RoleAdministrator {
		return invalid("role", "cannot demote yourself")
	}

	res, err := database.Exec(ctx, database.DB,
		"UPDATE users SET role = ?, is_staff = ? WHERE id = ?", role, role != models.RoleParent, targetID)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user")
	}
	log.Info().Str("actor_id", p.UserID).Str("user_id", targetID).Str("role", role).Msg("Changed user role")
	return nil
}
