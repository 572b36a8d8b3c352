package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Case struct {
	ID                string          `json:"id"`
	Parent1           UserSummary     `json:"parent1"`
	Parent2           *UserSummary    `json:"parent2,omitempty"`
	Draft             bool            `json:"draft"`
	Parent1Percentage decimal.Decimal `json:"parent1Percentage"`
	Parent2Percentage decimal.Decimal `json:"parent2Percentage"`
	Lawyers           []UserSummary   `json:"lawyers"`
	Judges            []UserSummary   `json:"judges"`
	ChildrenCount     int             `json:"childrenCount"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Parent2ID returns the second parent's id or "" for a draft.
func (c Case) Parent2ID() string {
	if c.Parent2 == nil {
		return ""
	}
	return c.Parent2.ID
}

// HasParent reports whether userID is one of the case's parents.
func (c Case) HasParent(userID string) bool {
	return userID != "" && (c.Parent1.ID == userID || c.Parent2ID() == userID)
}

type Child struct {
	ID        string `json:"id"`
	CaseID    string `json:"caseId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate Date   `json:"birthDate"`
}
