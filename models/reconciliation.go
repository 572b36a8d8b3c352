package models

import "github.com/shopspring/decimal"

// Period is a year, optionally narrowed to one quarter (Quarter 0 means the
// whole year).
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter,omitempty"`
}

// CategoryLine holds each parent's validated and pending totals for one
// category.
type CategoryLine struct {
	CategoryID       string          `json:"categoryId"`
	CategoryName     string          `json:"categoryName"`
	Parent1Validated decimal.Decimal `json:"parent1Validated"`
	Parent1Pending   decimal.Decimal `json:"parent1Pending"`
	Parent2Validated decimal.Decimal `json:"parent2Validated"`
	Parent2Pending   decimal.Decimal `json:"parent2Pending"`
}

// IsZero reports whether all four buckets are zero.
func (l CategoryLine) IsZero() bool {
	return l.Parent1Validated.IsZero() && l.Parent1Pending.IsZero() &&
		l.Parent2Validated.IsZero() && l.Parent2Pending.IsZero()
}

type TypeGroup struct {
	TypeID     string         `json:"typeId"`
	TypeName   string         `json:"typeName"`
	Categories []CategoryLine `json:"categories"`
}

// YearPeriods lists the quarters of a year that contain documents.
type YearPeriods struct {
	Year     int   `json:"year"`
	Quarters []int `json:"quarters"`
}

type Reconciliation struct {
	CaseID        string       `json:"caseId"`
	Period        *Period      `json:"period,omitempty"`
	FilterInvalid bool         `json:"filterInvalid"`
	Parent1       UserSummary  `json:"parent1"`
	Parent2       *UserSummary `json:"parent2,omitempty"`
	Groups        []TypeGroup  `json:"groups"`

	Parent1Total decimal.Decimal `json:"parent1Total"`
	Parent2Total decimal.Decimal `json:"parent2Total"`
	Total        decimal.Decimal `json:"total"`
	Difference   decimal.Decimal `json:"difference"`
	// InFavorOf is the id of the parent with the larger validated total, or
	// empty on a tie.
	InFavorOf string `json:"inFavorOf"`

	ChildrenCount      int             `json:"childrenCount"`
	ContributionAmount decimal.Decimal `json:"contributionAmount"`
	Parent1Percentage  decimal.Decimal `json:"parent1Percentage"`
	Parent2Percentage  decimal.Decimal `json:"parent2Percentage"`
	Parent1Share       decimal.Decimal `json:"parent1Share"`
	Parent2Share       decimal.Decimal `json:"parent2Share"`

	Periods []YearPeriods `json:"periods"`
}

// InFavorOfName resolves InFavorOf to a display name.
func (r Reconciliation) InFavorOfName() string {
	switch {
	case r.InFavorOf == "":
		return ""
	case r.InFavorOf == r.Parent1.ID:
		return r.Parent1.Name
	case r.Parent2 != nil && r.InFavorOf == r.Parent2.ID:
		return r.Parent2.Name
	}
	return ""
}

// CategoryDocuments is the drill-down of one category for both parents.
type CategoryDocuments struct {
	Category         Category   `json:"category"`
	Period           *Period    `json:"period,omitempty"`
	FilterInvalid    bool       `json:"filterInvalid"`
	Parent1Documents []Document `json:"parent1Documents"`
	Parent2Documents []Document `json:"parent2Documents"`
}
