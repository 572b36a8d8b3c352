package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Document struct {
	ID             string          `json:"id"`
	CaseID         string          `json:"caseId"`
	UserID         string          `json:"userId"`
	UserName       string          `json:"userName"`
	SubmittedBy    string          `json:"submittedBy"`
	Amount         decimal.Decimal `json:"amount"`
	Date           Date            `json:"date"`
	CategoryID     string          `json:"categoryId"`
	CategoryName   string          `json:"categoryName"`
	TypeName       string          `json:"typeName,omitempty"`
	Description    string          `json:"description,omitempty"`
	HasAttachment  bool            `json:"hasAttachment"`
	AttachmentType string          `json:"attachmentType,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	CanDelete      bool            `json:"canDelete"`
}

// CentsToAmount converts stored integer cents into a decimal amount.
func CentsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// AmountToCents converts a decimal amount into integer cents, rounding half
// away from zero.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type IndexHistory struct {
	ID        string          `json:"id"`
	Year      int             `json:"year"`
	Mode      string          `json:"mode"`
	Value     decimal.Decimal `json:"value"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Multiplier is the factor a percentage entry applied to document amounts.
func (h IndexHistory) Multiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Add(h.Value.Div(decimal.NewFromInt(100)))
}

// DocumentList is a page of documents and the filter that produced it.
type DocumentList struct {
	Documents     []Document `json:"documents"`
	Period        *Period    `json:"period,omitempty"`
	FilterInvalid bool       `json:"filterInvalid"`
}
