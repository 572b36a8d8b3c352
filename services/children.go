package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"coparent/backend/database"
	"coparent/backend/models"

	"github.com/google/uuid"
)

var childNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} '\-]*$`)

type ChildInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

func ListChildren(ctx context.Context, p models.Principal, caseID string) ([]models.Child, error) {
	if _, err := ResolveCaseAccess(ctx, p, caseID); err != nil {
		return nil, err
	}

	rows, err := database.Query(ctx, database.DB, `
		SELECT id, case_id, first_name, last_name, birth_date
		FROM children WHERE case_id = ?
		ORDER BY birth_date, first_name
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	children := []models.Child{}
	for rows.Next() {
		var c models.Child
		var birth any
		if err := rows.Scan(&c.ID, &c.CaseID, &c.FirstName, &c.LastName, &birth); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		if c.BirthDate, err = scanDate(birth); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func AddChild(ctx context.Context, p models.Principal, caseID string, in ChildInput) (models.Child, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Child{}, err
	}
	if !a.CanEditChildren() {
		return models.Child{}, forbidden("add child")
	}

	child := models.Child{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if !childNamePattern.MatchString(child.FirstName) {
		return models.Child{}, invalid("firstName", "name may only contain letters, spaces, hyphens and apostrophes")
	}
	if !childNamePattern.MatchString(child.LastName) {
		return models.Child{}, invalid("lastName", "name may only contain letters, spaces, hyphens and apostrophes")
	}
	if child.BirthDate, err = models.ParseDate(strings.TrimSpace(in.BirthDate)); err != nil {
		return models.Child{}, invalid("birthDate", "enter a valid date (YYYY-MM-DD)")
	}
	if child.BirthDate.After(today().Time) {
		return models.Child{}, invalid("birthDate", "birth date cannot be in the future")
	}

	_, err = database.Exec(ctx, database.DB, `
		INSERT INTO children (id, case_id, first_name, last_name, birth_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, child.ID, caseID, child.FirstName, child.LastName, child.BirthDate.String(), Now().UTC())
	if err != nil {
		return models.Child{}, fmt.Errorf("failed to insert child: %w", err)
	}
	return child, nil
}

func DeleteChild(ctx context.Context, p models.Principal, caseID, childID string) error {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return err
	}
	if !a.CanEditChildren() {
		return forbidden("delete child")
	}

	res, err := database.Exec(ctx, database.DB, "DELETE FROM children WHERE id = ? AND case_id = ?", childID, caseID)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("child")
	}
	return nil
}

func today() models.Date {
	return models.NewDate(Now())
}

// scanDate accepts the representations drivers use for DATE columns.
func scanDate(v any) (models.Date, error) {
	switch d := v.(type) {
	case time.Time:
		return models.NewDate(d), nil
	case string:
		return parseStoredDate(d)
	case []byte:
		return parseStoredDate(string(d))
	}
	return models.Date{}, fmt.Errorf("unexpected date value %T", v)
}

func parseStoredDate(s string) (models.Date, error) {
	if len(s) >= len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return d, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return d, nil
}
