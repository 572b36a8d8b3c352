package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"coparent/backend/database"
	"coparent/backend/events"
	"coparent/backend/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type IndexationInput struct {
	// Year defaults to the current year.
	Year  int    `json:"year"`
	Mode  string `json:"mode"`
	Value string `json:"value"`
	// BaseAmount seeds the contribution amount when there is no earlier
	// entry to derive it from.
	BaseAmount string `json:"baseAmount"`
	// Confirm allows replacing the entry that already exists for Year.
	Confirm bool `json:"confirm"`
}

const indexColumns = "id, year, mode, value, amount, created_at"

func scanIndex(row interface{ Scan(...any) error }) (models.IndexHistory, error) {
	var h models.IndexHistory
	err := row.Scan(&h.ID, &h.Year, &h.Mode, &h.Value, &h.Amount, &h.CreatedAt)
	return h, err
}

// ListIndexHistory returns every entry, most recent year first.
func ListIndexHistory(ctx context.Context) ([]models.IndexHistory, error) {
	rows, err := database.Query(ctx, database.DB, "SELECT "+indexColumns+" FROM index_history ORDER BY year DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list index history: %w", err)
	}
	defer rows.Close()

	history := []models.IndexHistory{}
	for rows.Next() {
		h, err := scanIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// LatestIndex returns the most recent entry, or nil when history is empty.
func LatestIndex(ctx context.Context) (*models.IndexHistory, error) {
	return latestIndex(ctx, database.DB)
}

func latestIndex(ctx context.Context, q database.Querier) (*models.IndexHistory, error) {
	h, err := scanIndex(database.QueryRow(ctx, q,
		"SELECT "+indexColumns+" FROM index_history ORDER BY year DESC, created_at DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest index: %w", err)
	}
	return &h, nil
}

func indexForYear(ctx context.Context, q database.Querier, year int) (*models.IndexHistory, error) {
	h, err := scanIndex(database.QueryRow(ctx, q, "SELECT "+indexColumns+" FROM index_history WHERE year = ?", year))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index for %d: %w", year, err)
	}
	return &h, nil
}

func parseTwoDecimals(field, raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return v, invalid(field, "enter a valid number")
	}
	if !v.Equal(v.Round(2)) {
		return v, invalid(field, "at most two decimals are allowed")
	}
	return v, nil
}

func duplicateYear(year int) error {
	return invalid("confirm", "an indexation already exists for %d", year)
}

// ApplyIndexation records the indexation of a year. In percentage mode
// every document amount is scaled by (1 + value/100) and the contribution
// amount follows. In index mode only the contribution amount moves, by the
// ratio of the new index to the previous one. Administrators only.
func ApplyIndexation(ctx context.Context, p models.Principal, in IndexationInput) (models.IndexHistory, error) {
	if !p.IsAdmin() {
		return models.IndexHistory{}, forbidden("apply indexation")
	}

	if in.Year == 0 {
		in.Year = Now().Year()
	}
	if in.Year < 1900 || in.Year > 9999 {
		return models.IndexHistory{}, invalid("year", "enter a valid year")
	}
	if in.Mode == "" {
		in.Mode = models.ModePercentage
	}
	if in.Mode != models.ModePercentage && in.Mode != models.ModeIndex {
		return models.IndexHistory{}, invalid("mode", "mode must be %q or %q", models.ModePercentage, models.ModeIndex)
	}

	value, err := parseTwoDecimals("value", in.Value, decimal.Zero)
	if err != nil {
		return models.IndexHistory{}, err
	}
	if strings.TrimSpace(in.Value) == "" {
		return models.IndexHistory{}, invalid("value", "this field is required")
	}
	if in.Mode == models.ModePercentage && value.LessThanOrEqual(hundred.Neg()) {
		return models.IndexHistory{}, invalid("value", "percentage must be greater than -100")
	}
	if in.Mode == models.ModeIndex && !value.IsPositive() {
		return models.IndexHistory{}, invalid("value", "index must be greater than zero")
	}
	base, err := parseTwoDecimals("baseAmount", in.BaseAmount, decimal.Zero)
	if err != nil {
		return models.IndexHistory{}, err
	}
	if base.IsNegative() {
		return models.IndexHistory{}, invalid("baseAmount", "base amount cannot be negative")
	}

	entry := models.IndexHistory{
		ID:        uuid.NewString(),
		Year:      in.Year,
		Mode:      in.Mode,
		Value:     value,
		CreatedAt: Now().UTC(),
	}

	var replaced *models.IndexHistory
	err = database.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := indexForYear(ctx, tx, in.Year)
		if err != nil {
			return err
		}
		latest, err := latestIndex(ctx, tx)
		if err != nil {
			return err
		}

		if existing != nil {
			if !in.Confirm {
				return duplicateYear(in.Year)
			}
			if latest.ID != existing.ID {
				return fmt.Errorf("only the latest indexation can be replaced: %w", ErrConflict)
			}
			if err := reverseIndexation(ctx, tx, *existing); err != nil {
				return err
			}
			replaced = existing
			if latest, err = latestIndex(ctx, tx); err != nil {
				return err
			}
		}

		if latest != nil && in.Year < latest.Year {
			return invalid("year", "indexation for %d is already recorded, years cannot go backwards", latest.Year)
		}

		switch in.Mode {
		case models.ModePercentage:
			previous := base
			if latest != nil {
				previous = latest.Amount
			}
			entry.Amount = previous.Mul(entry.Multiplier()).Round(2)
		case models.ModeIndex:
			entry.Amount = base
			if latest != nil && latest.Mode == models.ModeIndex {
				entry.Amount = latest.Amount.Mul(value).Div(latest.Value).Round(2)
			}
		}

		_, err = database.Exec(ctx, tx,
			"INSERT INTO index_history (id, year, mode, value, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			entry.ID, entry.Year, entry.Mode, entry.Value.StringFixed(2), entry.Amount.StringFixed(2), entry.CreatedAt)
		if database.IsUniqueViolation(err) {
			return duplicateYear(in.Year)
		}
		if err != nil {
			return fmt.Errorf("failed to insert index history: %w", err)
		}
		if in.Mode == models.ModePercentage {
			return scaleDocuments(ctx, tx, entry)
		}
		return nil
	})
	if err != nil {
		return models.IndexHistory{}, err
	}

	logEvent := log.Info().Str("actor_id", p.UserID).Int("year", entry.Year).Str("mode", entry.Mode).
		Str("value", entry.Value.StringFixed(2)).Str("amount", entry.Amount.StringFixed(2))
	if replaced != nil {
		logEvent = logEvent.Str("replaced_id", replaced.ID)
	}
	logEvent.Msg("Applied indexation")

	publish(ctx, events.Event{
		Type:    events.IndexationApplied,
		ActorID: p.UserID,
		Payload: map[string]any{"year": entry.Year, "mode": entry.Mode, "value": entry.Value.StringFixed(2), "amount": entry.Amount.StringFixed(2)},
	})
	return entry, nil
}

// ReverseIndexation undoes an entry and deletes it. Entries are undone
// newest first, so only the latest one may be reversed.
func ReverseIndexation(ctx context.Context, p models.Principal, id string) error {
	if !p.IsAdmin() {
		return forbidden("reverse indexation")
	}

	var entry models.IndexHistory
	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		entry, err = scanIndex(database.QueryRow(ctx, tx, "SELECT "+indexColumns+" FROM index_history WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("indexation")
		}
		if err != nil {
			return fmt.Errorf("failed to load indexation: %w", err)
		}

		latest, err := latestIndex(ctx, tx)
		if err != nil {
			return err
		}
		if latest.ID != entry.ID {
			return fmt.Errorf("only the latest indexation (%d) can be reversed: %w", latest.Year, ErrConflict)
		}
		return reverseIndexation(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	log.Info().Str("actor_id", p.UserID).Int("year", entry.Year).Str("mode", entry.Mode).Msg("Reversed indexation")
	publish(ctx, events.Event{
		Type:    events.IndexationReversed,
		ActorID: p.UserID,
		Payload: map[string]any{"year": entry.Year, "mode": entry.Mode},
	})
	return nil
}

func reverseIndexation(ctx context.Context, tx *sql.Tx, entry models.IndexHistory) error {
	if entry.Mode == models.ModePercentage {
		_, err := database.Exec(ctx, tx, `
			UPDATE documents SET amount_cents = (
				SELECT a.amount_cents FROM index_amounts a WHERE a.index_id = ? AND a.document_id = documents.id
			)
			WHERE id IN (SELECT document_id FROM index_amounts WHERE index_id = ?)`,
			entry.ID, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to restore document amounts: %w", err)
		}
	}
	if _, err := database.Exec(ctx, tx, "DELETE FROM index_amounts WHERE index_id = ?", entry.ID); err != nil {
		return fmt.Errorf("failed to delete indexed amounts: %w", err)
	}
	if _, err := database.Exec(ctx, tx, "DELETE FROM index_history WHERE id = ?", entry.ID); err != nil {
		return fmt.Errorf("failed to delete index history: %w", err)
	}
	return nil
}

// scaleDocuments multiplies every document amount by the entry's multiplier,
// rounding half up to the cent. The amount before scaling is recorded
// against the entry. All amounts are read before the first update.
func scaleDocuments(ctx context.Context, tx *sql.Tx, entry models.IndexHistory) error {
	rows, err := database.Query(ctx, tx, "SELECT id, amount_cents FROM documents")
	if err != nil {
		return fmt.Errorf("failed to read document amounts: %w", err)
	}
	type amount struct {
		id    string
		cents int64
	}
	var amounts []amount
	for rows.Next() {
		var a amount
		if err := rows.Scan(&a.id, &a.cents); err != nil {
			rows.Close()
			return err
		}
		amounts = append(amounts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	m := entry.Multiplier()
	for _, a := range amounts {
		if _, err := database.Exec(ctx, tx,
			"INSERT INTO index_amounts (index_id, document_id, amount_cents) VALUES (?, ?, ?)",
			entry.ID, a.id, a.cents); err != nil {
			return fmt.Errorf("failed to record document amount: %w", err)
		}
		scaled := decimal.NewFromInt(a.cents).Mul(m).Round(0).IntPart()
		if scaled == a.cents {
			continue
		}
		if _, err := database.Exec(ctx, tx, "UPDATE documents SET amount_cents = ? WHERE id = ?", scaled, a.id); err != nil {
			return fmt.Errorf("failed to update document amount: %w", err)
		}
	}
	return nil
}
