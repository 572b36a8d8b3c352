package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coparent/backend/database"
	"coparent/backend/events"
	"coparent/backend/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MaxDraftsPerParent bounds how many open drafts one parent may hold.
const MaxDraftsPerParent = 3

var hundred = decimal.NewFromInt(100)

func loadCase(ctx context.Context, q database.Querier, id string) (models.Case, error) {
	var c models.Case
	var p1 models.User
	var p1Email, p2ID, p2First, p2Last, p2Email sql.NullString
	err := database.QueryRow(ctx, q, `
		SELECT c.id, c.draft, c.parent1_percentage, c.parent2_percentage, c.created_at, c.updated_at,
			p1.id, p1.first_name, p1.last_name, p1.email,
			p2.id, p2.first_name, p2.last_name, p2.email
		FROM cases c
		JOIN users p1 ON p1.id = c.parent1_id
		LEFT JOIN users p2 ON p2.id = c.parent2_id
		WHERE c.id = ?
	`, id).Scan(&c.ID, &c.Draft, &c.Parent1Percentage, &c.Parent2Percentage, &c.CreatedAt, &c.UpdatedAt,
		&p1.ID, &p1.FirstName, &p1.LastName, &p1Email,
		&p2ID, &p2First, &p2Last, &p2Email)
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFound("case")
	}
	if err != nil {
		return c, fmt.Errorf("failed to load case: %w", err)
	}

	p1.Email = p1Email.String
	c.Parent1 = p1.Summary()
	if p2ID.Valid {
		p2 := models.User{ID: p2ID.String, FirstName: p2First.String, LastName: p2Last.String, Email: p2Email.String}.Summary()
		c.Parent2 = &p2
	}

	if c.Lawyers, err = linkedUsers(ctx, q, "case_lawyers", id); err != nil {
		return c, err
	}
	if c.Judges, err = linkedUsers(ctx, q, "case_judges", id); err != nil {
		return c, err
	}
	if err := database.QueryRow(ctx, q, "SELECT COUNT(*) FROM children WHERE case_id = ?", id).Scan(&c.ChildrenCount); err != nil {
		return c, fmt.Errorf("failed to count children: %w", err)
	}
	return c, nil
}

func linkedUsers(ctx context.Context, q database.Querier, table, caseID string) ([]models.UserSummary, error) {
	rows, err := database.Query(ctx, q, `
		SELECT u.id, u.first_name, u.last_name, u.email
		FROM `+table+` l
		JOIN users u ON u.id = l.user_id
		WHERE l.case_id = ?
		ORDER BY u.last_name, u.first_name, u.id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	out := []models.UserSummary{}
	for rows.Next() {
		var u models.User
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &email); err != nil {
			return nil, err
		}
		u.Email = email.String
		out = append(out, u.Summary())
	}
	return out, rows.Err()
}

// loadCases collects the ids first so the rows are closed before each case
// is loaded.
func loadCases(ctx context.Context, q database.Querier, query string, args ...any) ([]models.Case, error) {
	rows, err := database.Query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cases := make([]models.Case, 0, len(ids))
	for _, id := range ids {
		c, err := loadCase(ctx, q, id)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func userRole(ctx context.Context, q database.Querier, id string) (string, error) {
	var role string
	err := database.QueryRow(ctx, q, "SELECT role FROM users WHERE id = ?", id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("user")
	}
	return role, err
}

// requireRole checks that the user referenced by field exists with role.
func requireRole(ctx context.Context, q database.Querier, field, id, role string) error {
	if id == "" {
		return invalid(field, "this field is required")
	}
	actual, err := userRole(ctx, q, id)
	if errors.Is(err, ErrNotFound) {
		return invalid(field, "unknown user")
	}
	if err != nil {
		return fmt.Errorf("failed to load user role: %w", err)
	}
	if actual != role {
		return invalid(field, "user is not a %s", role)
	}
	return nil
}

func pairHasCase(ctx context.Context, q database.Querier, a, b string) (bool, error) {
	var count int
	err := database.QueryRow(ctx, q, `
		SELECT COUNT(*) FROM cases
		WHERE (parent1_id = ? AND parent2_id = ?) OR (parent1_id = ? AND parent2_id = ?)
	`, a, b, b, a).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existing case: %w", err)
	}
	return count > 0, nil
}

func isLegalStaff(p models.Principal) bool {
	return p.IsAdmin() || p.Role == models.RoleLawyer
}

func publish(ctx context.Context, e events.Event) {
	if Events == nil {
		return
	}
	e.OccurredAt = Now().UTC()
	if err := Events.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("event", e.Type).Msg("Failed to publish ledger event")
	}
}

// ListCases returns the cases visible to p.
func ListCases(ctx context.Context, p models.Principal) ([]models.Case, error) {
	if p.IsAdmin() {
		return loadCases(ctx, database.DB, "SELECT id FROM cases ORDER BY created_at DESC, id")
	}
	return loadCases(ctx, database.DB, `
		SELECT id FROM cases
		WHERE parent1_id = ? OR parent2_id = ?
			OR id IN (SELECT case_id FROM case_lawyers WHERE user_id = ?)
			OR id IN (SELECT case_id FROM case_judges WHERE user_id = ?)
		ORDER BY created_at DESC, id
	`, p.UserID, p.UserID, p.UserID, p.UserID)
}

func GetCase(ctx context.Context, p models.Principal, caseID string) (models.Case, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Case{}, err
	}
	return a.Case, nil
}

type CreateCaseInput struct {
	Parent1ID string `json:"parent1Id"`
	Parent2ID string `json:"parent2Id"`
	// LawyerID is required when an administrator creates the case.
	LawyerID string `json:"lawyerId"`
}

// CreateCase opens an active case for two parents and links its lawyer.
func CreateCase(ctx context.Context, p models.Principal, in CreateCaseInput) (models.Case, error) {
	if !isLegalStaff(p) {
		return models.Case{}, forbidden("create case")
	}
	if in.Parent1ID != "" && in.Parent1ID == in.Parent2ID {
		return models.Case{}, invalid("parent2Id", "the two parents must be different")
	}

	lawyerID := in.LawyerID
	if !p.IsAdmin() {
		lawyerID = p.UserID
	}

	id := uuid.NewString()
	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, "parent1Id", in.Parent1ID, models.RoleParent); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, "parent2Id", in.Parent2ID, models.RoleParent); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, "lawyerId", lawyerID, models.RoleLawyer); err != nil {
			return err
		}
		exists, err := pairHasCase(ctx, tx, in.Parent1ID, in.Parent2ID)
		if err != nil {
			return err
		}
		if exists {
			return invalid("parent2Id", "a case already exists for these parents")
		}

		now := Now().UTC()
		if _, err := database.Exec(ctx, tx, `
			INSERT INTO cases (id, parent1_id, parent2_id, draft, parent1_percentage, parent2_percentage, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, in.Parent1ID, in.Parent2ID, false, "50", "50", now, now); err != nil {
			return fmt.Errorf("failed to insert case: %w", err)
		}
		_, err = database.Exec(ctx, tx, "INSERT INTO case_lawyers (case_id, user_id) VALUES (?, ?)", id, lawyerID)
		return err
	})
	if err != nil {
		return models.Case{}, err
	}

	log.Info().Str("case_id", id).Str("actor_id", p.UserID).Msg("Created case")
	publish(ctx, events.Event{Type: events.CaseCreated, CaseID: id, ActorID: p.UserID})
	return loadCase(ctx, database.DB, id)
}

// CreateDraft opens a single-parent draft for the calling parent.
func CreateDraft(ctx context.Context, p models.Principal) (models.Case, error) {
	if p.Role != models.RoleParent {
		return models.Case{}, forbidden("create draft")
	}

	id := uuid.NewString()
	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		var drafts int
		if err := database.QueryRow(ctx, tx,
			"SELECT COUNT(*) FROM cases WHERE parent1_id = ? AND draft = ?", p.UserID, true,
		).Scan(&drafts); err != nil {
			return fmt.Errorf("failed to count drafts: %w", err)
		}
		if drafts >= MaxDraftsPerParent {
			return invalid("draft", "you cannot have more than %d draft cases", MaxDraftsPerParent)
		}

		now := Now().UTC()
		_, err := database.Exec(ctx, tx, `
			INSERT INTO cases (id, parent1_id, draft, parent1_percentage, parent2_percentage, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, p.UserID, true, "50", "50", now, now)
		return err
	})
	if err != nil {
		return models.Case{}, err
	}
	return loadCase(ctx, database.DB, id)
}

// ListDrafts lists every open draft for lawyers and administrators.
func ListDrafts(ctx context.Context, p models.Principal) ([]models.Case, error) {
	if !isLegalStaff(p) {
		return nil, forbidden("list drafts")
	}
	return loadCases(ctx, database.DB, "SELECT id FROM cases WHERE draft = ? ORDER BY created_at, id", true)
}

func loadDraft(ctx context.Context, tx *sql.Tx, field, id string) (models.Case, error) {
	c, err := loadCase(ctx, tx, id)
	if errors.Is(err, ErrNotFound) {
		return c, invalid(field, "unknown draft")
	}
	if err != nil {
		return c, err
	}
	if !c.Draft {
		return c, fmt.Errorf("case %s is not a draft: %w", id, ErrConflict)
	}
	return c, nil
}

func linkLawyerIfNeeded(ctx context.Context, tx *sql.Tx, p models.Principal, caseID string) error {
	if p.Role != models.RoleLawyer {
		return nil
	}
	_, err := database.Exec(ctx, tx,
		"INSERT INTO case_lawyers (case_id, user_id) VALUES (?, ?) ON CONFLICT (case_id, user_id) DO NOTHING", caseID, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to link lawyer: %w", err)
	}
	return nil
}

// activeShares returns the percentages a draft keeps once its second parent
// is attached. Shares set on a single-parent draft need not add up to 100;
// those fall back to an even split.
func activeShares(c models.Case) (string, string) {
	if c.Parent1Percentage.Add(c.Parent2Percentage).Equal(hundred) {
		return c.Parent1Percentage.StringFixed(2), c.Parent2Percentage.StringFixed(2)
	}
	return "50.00", "50.00"
}

// ConvertDraft attaches the second parent, turning the draft into an active
// case.
func ConvertDraft(ctx context.Context, p models.Principal, caseID, parent2ID string) (models.Case, error) {
	if !isLegalStaff(p) {
		return models.Case{}, forbidden("convert draft")
	}

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := loadCase(ctx, tx, caseID)
		if err != nil {
			return err
		}
		if !c.Draft {
			return fmt.Errorf("case is not a draft: %w", ErrConflict)
		}
		if parent2ID == c.Parent1.ID {
			return invalid("parent2Id", "the two parents must be different")
		}
		if err := requireRole(ctx, tx, "parent2Id", parent2ID, models.RoleParent); err != nil {
			return err
		}
		exists, err := pairHasCase(ctx, tx, c.Parent1.ID, parent2ID)
		if err != nil {
			return err
		}
		if exists {
			return invalid("parent2Id", "a case already exists for these parents")
		}

		share1, share2 := activeShares(c)
		if _, err := database.Exec(ctx, tx,
			"UPDATE cases SET parent2_id = ?, draft = ?, parent1_percentage = ?, parent2_percentage = ?, updated_at = ? WHERE id = ?",
			parent2ID, false, share1, share2, Now().UTC(), caseID); err != nil {
			return fmt.Errorf("failed to convert draft: %w", err)
		}
		return linkLawyerIfNeeded(ctx, tx, p, caseID)
	})
	if err != nil {
		return models.Case{}, err
	}

	publish(ctx, events.Event{Type: events.DraftConverted, CaseID: caseID, ActorID: p.UserID})
	return loadCase(ctx, database.DB, caseID)
}

// CombineDrafts merges two single-parent drafts into one active case. The
// second draft's documents and children move to the first, then the second
// draft is deleted. Drafts opened by the same parent cannot be combined.
func CombineDrafts(ctx context.Context, p models.Principal, draft1ID, draft2ID string) (models.Case, error) {
	if !isLegalStaff(p) {
		return models.Case{}, forbidden("combine drafts")
	}
	if draft1ID == draft2ID {
		return models.Case{}, invalid("draft2Id", "select two different drafts")
	}

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		d1, err := loadDraft(ctx, tx, "draft1Id", draft1ID)
		if err != nil {
			return err
		}
		d2, err := loadDraft(ctx, tx, "draft2Id", draft2ID)
		if err != nil {
			return err
		}
		if d1.Parent1.ID == d2.Parent1.ID {
			return invalid("draft2Id", "both drafts belong to the same parent")
		}
		exists, err := pairHasCase(ctx, tx, d1.Parent1.ID, d2.Parent1.ID)
		if err != nil {
			return err
		}
		if exists {
			return invalid("draft2Id", "a case already exists for these parents")
		}

		share1, share2 := activeShares(d1)
		statements := []struct {
			query string
			args  []any
		}{
			{"UPDATE cases SET parent2_id = ?, draft = ?, parent1_percentage = ?, parent2_percentage = ?, updated_at = ? WHERE id = ?",
				[]any{d2.Parent1.ID, false, share1, share2, Now().UTC(), d1.ID}},
			{"UPDATE documents SET case_id = ? WHERE case_id = ?", []any{d1.ID, d2.ID}},
			{"UPDATE children SET case_id = ? WHERE case_id = ?", []any{d1.ID, d2.ID}},
			{"DELETE FROM cases WHERE id = ?", []any{d2.ID}},
		}
		for _, s := range statements {
			if _, err := database.Exec(ctx, tx, s.query, s.args...); err != nil {
				return fmt.Errorf("failed to combine drafts: %w", err)
			}
		}
		return linkLawyerIfNeeded(ctx, tx, p, d1.ID)
	})
	if err != nil {
		return models.Case{}, err
	}

	log.Info().Str("case_id", draft1ID).Str("absorbed_case_id", draft2ID).Str("actor_id", p.UserID).Msg("Combined drafts")
	publish(ctx, events.Event{
		Type:    events.DraftsCombined,
		CaseID:  draft1ID,
		ActorID: p.UserID,
		Payload: map[string]any{"absorbedCaseId": draft2ID},
	})
	return loadCase(ctx, database.DB, draft1ID)
}

// UpdatePercentages sets each parent's contribution share.
func UpdatePercentages(ctx context.Context, p models.Principal, caseID string, parent1, parent2 decimal.Decimal) (models.Case, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Case{}, err
	}
	if !a.CanManage() {
		return models.Case{}, forbidden("update percentages")
	}

	for _, f := range []struct {
		field string
		v     decimal.Decimal
	}{{"parent1Percentage", parent1}, {"parent2Percentage", parent2}} {
		field, v := f.field, f.v
		if v.IsNegative() || v.GreaterThan(hundred) {
			return models.Case{}, invalid(field, "percentage must be between 0 and 100")
		}
		if !v.Equal(v.Round(2)) {
			return models.Case{}, invalid(field, "percentage has at most two decimals")
		}
	}
	if a.Case.Parent2 != nil && !parent1.Add(parent2).Equal(hundred) {
		return models.Case{}, invalid("parent2Percentage", "percentages must add up to 100")
	}

	_, err = database.Exec(ctx, database.DB,
		"UPDATE cases SET parent1_percentage = ?, parent2_percentage = ?, updated_at = ? WHERE id = ?",
		parent1.StringFixed(2), parent2.StringFixed(2), Now().UTC(), caseID)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to update percentages: %w", err)
	}
	return loadCase(ctx, database.DB, caseID)
}

func AssignLawyer(ctx context.Context, p models.Principal, caseID, userID string) (models.Case, error) {
	return link(ctx, p, "case_lawyers", models.RoleLawyer, caseID, userID)
}

func RemoveLawyer(ctx context.Context, p models.Principal, caseID, userID string) (models.Case, error) {
	return unlink(ctx, p, "case_lawyers", caseID, userID)
}

func AssignJudge(ctx context.Context, p models.Principal, caseID, userID string) (models.Case, error) {
	return link(ctx, p, "case_judges", models.RoleJudge, caseID, userID)
}

func RemoveJudge(ctx context.Context, p models.Principal, caseID, userID string) (models.Case, error) {
	return unlink(ctx, p, "case_judges", caseID, userID)
}

func link(ctx context.Context, p models.Principal, table, role, caseID, userID string) (models.Case, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Case{}, err
	}
	if !a.CanManage() {
		return models.Case{}, forbidden("link " + role)
	}
	if err := requireRole(ctx, database.DB, "userId", userID, role); err != nil {
		return models.Case{}, err
	}

	_, err = database.Exec(ctx, database.DB, "INSERT INTO "+table+" (case_id, user_id) VALUES (?, ?)", caseID, userID)
	if database.IsUniqueViolation(err) {
		return models.Case{}, fmt.Errorf("%s already linked: %w", role, ErrConflict)
	}
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to link %s: %w", role, err)
	}
	return loadCase(ctx, database.DB, caseID)
}

// unlink removes the join row only; the case is never touched.
func unlink(ctx context.Context, p models.Principal, table, caseID, userID string) (models.Case, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Case{}, err
	}
	if !a.CanManage() {
		return models.Case{}, forbidden("unlink user")
	}

	res, err := database.Exec(ctx, database.DB, "DELETE FROM "+table+" WHERE case_id = ? AND user_id = ?", caseID, userID)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to unlink user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Case{}, notFound("case link")
	}
	return loadCase(ctx, database.DB, caseID)
}
