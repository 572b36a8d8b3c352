package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"coparent/backend/database"
	"coparent/backend/models"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuarter = errors.New("quarter must be between 1 and 4")

// QuarterRange returns the half-open date range [from, to) of a quarter.
// The fourth quarter ends on January 1st of the following year.
func QuarterRange(year, quarter int) (from, to time.Time, err error) {
	if quarter < 1 || quarter > 4 {
		return from, to, ErrInvalidQuarter
	}
	if year < 1 || year > 9999 {
		return from, to, fmt.Errorf("invalid year %d", year)
	}
	startMonth := time.Month((quarter-1)*3 + 1)
	from = time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 3, 0), nil
}

// ParsePeriod reads the year and quarter filter. The filter only applies
// when both values are given; ok is false when they are given but do not
// form a valid quarter.
func ParsePeriod(yearStr, quarterStr string) (period *models.Period, ok bool) {
	yearStr, quarterStr = strings.TrimSpace(yearStr), strings.TrimSpace(quarterStr)
	if yearStr == "" || quarterStr == "" {
		return nil, true
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, false
	}
	quarter, err := strconv.Atoi(quarterStr)
	if err != nil {
		return nil, false
	}
	if _, _, err := QuarterRange(year, quarter); err != nil {
		return nil, false
	}
	return &models.Period{Year: year, Quarter: quarter}, true
}

// periodBounds returns the date range of p as query arguments.
func periodBounds(p *models.Period) (from, to string) {
	start, end, _ := QuarterRange(p.Year, p.Quarter)
	return start.Format(models.DateLayout), end.Format(models.DateLayout)
}

// Reconcile compares what each parent paid per category, optionally within
// one quarter. An invalid filter yields an empty result with FilterInvalid
// set rather than an error.
func Reconcile(ctx context.Context, p models.Principal, caseID, yearStr, quarterStr string) (models.Reconciliation, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Reconciliation{}, err
	}
	c := a.Case

	r := models.Reconciliation{
		CaseID:            c.ID,
		Parent1:           c.Parent1,
		Parent2:           c.Parent2,
		Groups:            []models.TypeGroup{},
		ChildrenCount:     c.ChildrenCount,
		Parent1Percentage: c.Parent1Percentage,
		Parent2Percentage: c.Parent2Percentage,
	}

	if r.Periods, err = availablePeriods(ctx, caseID); err != nil {
		return r, err
	}
	if err := fillContribution(ctx, &r); err != nil {
		return r, err
	}

	period, ok := ParsePeriod(yearStr, quarterStr)
	if !ok {
		r.FilterInvalid = true
		return r, nil
	}
	r.Period = period

	if r.Groups, err = categoryTotals(ctx, c, period); err != nil {
		return r, err
	}

	for _, g := range r.Groups {
		for _, line := range g.Categories {
			r.Parent1Total = r.Parent1Total.Add(line.Parent1Validated)
			r.Parent2Total = r.Parent2Total.Add(line.Parent2Validated)
		}
	}
	r.Total = r.Parent1Total.Add(r.Parent2Total)
	r.Difference = r.Parent1Total.Sub(r.Parent2Total).Abs()
	switch {
	case r.Parent1Total.GreaterThan(r.Parent2Total):
		r.InFavorOf = c.Parent1.ID
	case r.Parent2Total.GreaterThan(r.Parent1Total) && c.Parent2 != nil:
		r.InFavorOf = c.Parent2.ID
	}
	return r, nil
}

func fillContribution(ctx context.Context, r *models.Reconciliation) error {
	latest, err := latestIndex(ctx, database.DB)
	if err != nil {
		return err
	}
	if latest != nil {
		r.ContributionAmount = latest.Amount.Mul(decimal.NewFromInt(int64(r.ChildrenCount))).Round(2)
	}
	r.Parent1Share = r.ContributionAmount.Mul(r.Parent1Percentage).Div(hundred).Round(2)
	r.Parent2Share = r.ContributionAmount.Mul(r.Parent2Percentage).Div(hundred).Round(2)
	return nil
}

// categoryTotals sums validated and pending amounts per (type, category)
// and parent. Untyped categories never match the join on category_types.
func categoryTotals(ctx context.Context, c models.Case, period *models.Period) ([]models.TypeGroup, error) {
	query := `
		SELECT t.id, t.name, cat.id, cat.name, d.user_id, d.status, SUM(d.amount_cents)
		FROM documents d
		JOIN categories cat ON cat.id = d.category_id
		JOIN category_types t ON t.id = cat.type_id
		WHERE d.case_id = ? AND d.status IN (?, ?)`
	args := []any{c.ID, models.StatusValidated, models.StatusPending}
	if period != nil {
		from, to := periodBounds(period)
		query += " AND d.date >= ? AND d.date < ?"
		args = append(args, from, to)
	}
	query += `
		GROUP BY t.id, t.name, cat.id, cat.name, d.user_id, d.status
		ORDER BY t.name, cat.name, cat.id`

	rows, err := database.Query(ctx, database.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate documents: %w", err)
	}
	defer rows.Close()

	type lineRef struct{ group, line int }
	refs := map[string]lineRef{}
	groups := []models.TypeGroup{}

	for rows.Next() {
		var typeID, typeName, categoryID, categoryName, userID, status string
		var cents int64
		if err := rows.Scan(&typeID, &typeName, &categoryID, &categoryName, &userID, &status, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		isParent1 := userID == c.Parent1.ID
		if !isParent1 && userID != c.Parent2ID() {
			continue
		}

		ref, seen := refs[categoryID]
		if !seen {
			if len(groups) == 0 || groups[len(groups)-1].TypeID != typeID {
				groups = append(groups, models.TypeGroup{TypeID: typeID, TypeName: typeName})
			}
			g := len(groups) - 1
			groups[g].Categories = append(groups[g].Categories, models.CategoryLine{CategoryID: categoryID, CategoryName: categoryName})
			ref = lineRef{g, len(groups[g].Categories) - 1}
			refs[categoryID] = ref
		}

		line := &groups[ref.group].Categories[ref.line]
		amount := models.CentsToAmount(cents)
		switch {
		case isParent1 && status == models.StatusValidated:
			line.Parent1Validated = line.Parent1Validated.Add(amount)
		case isParent1:
			line.Parent1Pending = line.Parent1Pending.Add(amount)
		case status == models.StatusValidated:
			line.Parent2Validated = line.Parent2Validated.Add(amount)
		default:
			line.Parent2Pending = line.Parent2Pending.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := groups[:0]
	for _, g := range groups {
		lines := g.Categories[:0]
		for _, line := range g.Categories {
			if !line.IsZero() {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			g.Categories = lines
			out = append(out, g)
		}
	}
	return out, nil
}

// AvailablePeriods lists the years holding at least one document of the
// case and, per year, the quarters that do.
func AvailablePeriods(ctx context.Context, p models.Principal, caseID string) ([]models.YearPeriods, error) {
	if _, err := ResolveCaseAccess(ctx, p, caseID); err != nil {
		return nil, err
	}
	return availablePeriods(ctx, caseID)
}

func availablePeriods(ctx context.Context, caseID string) ([]models.YearPeriods, error) {
	rows, err := database.Query(ctx, database.DB, "SELECT DISTINCT date FROM documents WHERE case_id = ?", caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document dates: %w", err)
	}
	defer rows.Close()

	quarters := map[int]map[int]bool{}
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := scanDate(raw)
		if err != nil {
			return nil, err
		}
		year, quarter := d.Year(), (int(d.Month())-1)/3+1
		if quarters[year] == nil {
			quarters[year] = map[int]bool{}
		}
		quarters[year][quarter] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	periods := make([]models.YearPeriods, 0, len(quarters))
	for year, qs := range quarters {
		yp := models.YearPeriods{Year: year}
		for q := 1; q <= 4; q++ {
			if qs[q] {
				yp.Quarters = append(yp.Quarters, q)
			}
		}
		periods = append(periods, yp)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Year < periods[j].Year })
	return periods, nil
}

// CategoryDocuments lists each parent's validated and pending documents in
// one category, with the same filter rules as Reconcile.
func CategoryDocuments(ctx context.Context, p models.Principal, caseID, categoryID, yearStr, quarterStr string) (models.CategoryDocuments, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.CategoryDocuments{}, err
	}
	category, err := GetCategory(ctx, categoryID)
	if err != nil {
		return models.CategoryDocuments{}, err
	}

	out := models.CategoryDocuments{
		Category:         category,
		Parent1Documents: []models.Document{},
		Parent2Documents: []models.Document{},
	}
	period, ok := ParsePeriod(yearStr, quarterStr)
	if !ok {
		out.FilterInvalid = true
		return out, nil
	}
	out.Period = period

	docs, err := queryDocuments(ctx, database.DB, documentFilter{
		caseID:     caseID,
		categoryID: categoryID,
		statuses:   []string{models.StatusValidated, models.StatusPending},
		period:     period,
	})
	if err != nil {
		return out, err
	}
	for _, d := range docs {
		d.CanDelete = CanDeleteDocument(p, d)
		switch d.UserID {
		case a.Case.Parent1.ID:
			out.Parent1Documents = append(out.Parent1Documents, d)
		case a.Case.Parent2ID():
			out.Parent2Documents = append(out.Parent2Documents, d)
		}
	}
	return out, nil
}
