package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"coparent/backend/database"
	"coparent/backend/events"
	"coparent/backend/models"
	"coparent/backend/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MaxAttachmentSize is the largest accepted upload.
const MaxAttachmentSize = 10 << 20

var (
	amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	maxAmount     = decimal.RequireFromString("99999999.99")

	attachmentExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
	}
)

// Attachment is an uploaded receipt.
type Attachment struct {
	Filename string
	Data     []byte
}

type SubmitDocumentInput struct {
	// ParentID names the parent a lawyer or administrator submits for.
	ParentID     string      `json:"parentId"`
	Amount       string      `json:"amount"`
	Date         string      `json:"date"`
	CategoryID   string      `json:"categoryId"`
	CategoryName string      `json:"categoryName"`
	Description  string      `json:"description"`
	Attachment   *Attachment `json:"-"`
}

const documentSelect = `
	SELECT d.id, d.case_id, d.user_id, u.first_name, u.last_name, u.email, d.submitted_by,
		d.amount_cents, d.date, d.category_id, cat.name, t.name, d.description,
		d.attachment_key, d.attachment_type, d.status, d.created_at
	FROM documents d
	JOIN users u ON u.id = d.user_id
	JOIN categories cat ON cat.id = d.category_id
	LEFT JOIN category_types t ON t.id = cat.type_id`

type documentRow struct {
	models.Document
	attachmentKey string
}

func scanDocument(row interface{ Scan(...any) error }) (documentRow, error) {
	var d documentRow
	var first, last string
	var email, typeName sql.NullString
	var cents int64
	var date any
	err := row.Scan(&d.ID, &d.CaseID, &d.UserID, &first, &last, &email, &d.SubmittedBy,
		&cents, &date, &d.CategoryID, &d.CategoryName, &typeName, &d.Description,
		&d.attachmentKey, &d.AttachmentType, &d.Status, &d.CreatedAt)
	if err != nil {
		return d, err
	}
	if d.Date, err = scanDate(date); err != nil {
		return d, err
	}
	d.UserName = models.User{FirstName: first, LastName: last, Email: email.String}.FullName()
	d.TypeName = typeName.String
	d.Amount = models.CentsToAmount(cents)
	d.HasAttachment = d.attachmentKey != ""
	return d, nil
}

func loadDocument(ctx context.Context, q database.Querier, id string) (documentRow, error) {
	d, err := scanDocument(database.QueryRow(ctx, q, documentSelect+" WHERE d.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, notFound("document")
	}
	if err != nil {
		return d, fmt.Errorf("failed to load document: %w", err)
	}
	return d, nil
}

type documentFilter struct {
	caseID     string
	categoryID string
	statuses   []string
	period     *models.Period
}

func queryDocuments(ctx context.Context, q database.Querier, f documentFilter) ([]models.Document, error) {
	query := documentSelect + " WHERE d.case_id = ?"
	args := []any{f.caseID}
	if f.categoryID != "" {
		query += " AND d.category_id = ?"
		args = append(args, f.categoryID)
	}
	if len(f.statuses) > 0 {
		query += " AND d.status IN (?" + strings.Repeat(", ?", len(f.statuses)-1) + ")"
		for _, s := range f.statuses {
			args = append(args, s)
		}
	}
	if f.period != nil {
		from, to := periodBounds(f.period)
		query += " AND d.date >= ? AND d.date < ?"
		args = append(args, from, to)
	}
	query += " ORDER BY d.date DESC, d.created_at DESC, d.id"

	rows, err := database.Query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d.Document)
	}
	return docs, rows.Err()
}

// parseAmount accepts a positive amount with at most two decimals.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, invalid("amount", "enter a valid amount with up to two decimals")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("amount", "enter a valid amount with up to two decimals")
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalid("amount", "amount must be greater than zero")
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, invalid("amount", "amount is too large")
	}
	return amount, nil
}

// validateAttachment checks both the extension and the sniffed content
// type, and returns the content type.
func validateAttachment(a *Attachment) (string, error) {
	if len(a.Data) == 0 {
		return "", invalid("document", "the uploaded file is empty")
	}
	if len(a.Data) > MaxAttachmentSize {
		return "", invalid("document", "the file must be smaller than %d MB", MaxAttachmentSize>>20)
	}
	byExt, ok := attachmentExtensions[strings.ToLower(path.Ext(a.Filename))]
	sniffed := http.DetectContentType(a.Data)
	if !ok || sniffed != byExt {
		return "", invalid("document", "the file must be a JPEG or PNG image")
	}
	return sniffed, nil
}

// SubmitDocument records a payment. Parents submit their own documents,
// which wait for review; lawyers and administrators submit on a parent's
// behalf and the document is validated immediately.
func SubmitDocument(ctx context.Context, p models.Principal, caseID string, in SubmitDocumentInput) (models.Document, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return models.Document{}, err
	}
	if !a.CanSubmit() {
		return models.Document{}, forbidden("submit document")
	}

	owner, status := p.UserID, models.StatusPending
	if a.IsLawyer || a.IsAdmin {
		owner, status = in.ParentID, models.StatusValidated
		if owner == "" && a.IsParent {
			owner, status = p.UserID, models.StatusPending
		}
		if !a.Case.HasParent(owner) {
			return models.Document{}, invalid("parentId", "select one of the case's parents")
		}
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return models.Document{}, err
	}

	date := today()
	if s := strings.TrimSpace(in.Date); s != "" {
		if date, err = models.ParseDate(s); err != nil {
			return models.Document{}, invalid("date", "enter a valid date (YYYY-MM-DD)")
		}
	}

	if in.CategoryID == "" && strings.TrimSpace(in.CategoryName) == "" {
		return models.Document{}, invalid("categoryId", "select a category")
	}

	id := uuid.NewString()
	var key, contentType string
	if in.Attachment != nil {
		if contentType, err = validateAttachment(in.Attachment); err != nil {
			return models.Document{}, err
		}
		if Attachments == nil {
			return models.Document{}, errors.New("attachment storage is not configured")
		}
		key = path.Join("cases", caseID, id+strings.ToLower(path.Ext(in.Attachment.Filename)))
		if err := Attachments.Save(ctx, key, contentType, bytes.NewReader(in.Attachment.Data)); err != nil {
			return models.Document{}, fmt.Errorf("failed to store attachment: %w", err)
		}
	}

	err = database.WithTx(ctx, func(tx *sql.Tx) error {
		categoryID := in.CategoryID
		if categoryID != "" {
			if _, err := loadCategory(ctx, tx, categoryID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return invalid("categoryId", "unknown category")
				}
				return err
			}
		} else {
			var err error
			if categoryID, err = categoryForName(ctx, tx, in.CategoryName); err != nil {
				return err
			}
		}

		_, err := database.Exec(ctx, tx, `
			INSERT INTO documents (id, case_id, user_id, submitted_by, amount_cents, date, category_id,
				description, attachment_key, attachment_type, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, caseID, owner, p.UserID, models.AmountToCents(amount), date.String(), categoryID,
			strings.TrimSpace(in.Description), key, contentType, status, Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		return nil
	})
	if err != nil {
		if key != "" {
			removeAttachment(ctx, key)
		}
		return models.Document{}, err
	}

	publish(ctx, events.Event{
		Type:    events.DocumentSubmitted,
		CaseID:  caseID,
		ActorID: p.UserID,
		Payload: map[string]any{"documentId": id, "status": status, "amount": amount.StringFixed(2)},
	})

	d, err := loadDocument(ctx, database.DB, id)
	if err != nil {
		return models.Document{}, err
	}
	d.CanDelete = CanDeleteDocument(p, d.Document)
	return d.Document, nil
}

// ListDocuments lists a case's documents, optionally within one quarter.
func ListDocuments(ctx context.Context, p models.Principal, caseID, yearStr, quarterStr string) (models.DocumentList, error) {
	if _, err := ResolveCaseAccess(ctx, p, caseID); err != nil {
		return models.DocumentList{}, err
	}

	list := models.DocumentList{Documents: []models.Document{}}
	period, ok := ParsePeriod(yearStr, quarterStr)
	if !ok {
		list.FilterInvalid = true
		return list, nil
	}
	list.Period = period

	docs, err := queryDocuments(ctx, database.DB, documentFilter{caseID: caseID, period: period})
	if err != nil {
		return list, err
	}
	for i := range docs {
		docs[i].CanDelete = CanDeleteDocument(p, docs[i])
	}
	list.Documents = docs
	return list, nil
}

// ListPending returns the review queue of a case.
func ListPending(ctx context.Context, p models.Principal, caseID string) ([]models.Document, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return nil, err
	}
	if !a.CanReview() {
		return nil, forbidden("review documents")
	}
	return queryDocuments(ctx, database.DB, documentFilter{caseID: caseID, statuses: []string{models.StatusPending}})
}

// Review actions
const (
	ActionValidate = "validate"
	ActionReject   = "reject"
)

// ReviewDocuments validates or rejects a batch of pending documents. Either
// every document changes or none does.
func ReviewDocuments(ctx context.Context, p models.Principal, caseID string, ids []string, action string) (int, error) {
	a, err := ResolveCaseAccess(ctx, p, caseID)
	if err != nil {
		return 0, err
	}
	if !a.CanReview() {
		return 0, forbidden("review documents")
	}

	var status string
	switch action {
	case ActionValidate:
		status = models.StatusValidated
	case ActionReject:
		status = models.StatusRejected
	default:
		return 0, invalid("action", "action must be %q or %q", ActionValidate, ActionReject)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, invalid("documentIds", "select at least one document")
	}

	err = database.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			var docCase, current string
			err := database.QueryRow(ctx, tx, "SELECT case_id, status FROM documents WHERE id = ?", id).Scan(&docCase, &current)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && docCase != caseID) {
				return notFound("document " + id)
			}
			if err != nil {
				return fmt.Errorf("failed to load document: %w", err)
			}
			if current != models.StatusPending {
				return fmt.Errorf("document %s is already %s: %w", id, current, ErrConflict)
			}
			if _, err := database.Exec(ctx, tx, "UPDATE documents SET status = ? WHERE id = ?", status, id); err != nil {
				return fmt.Errorf("failed to update document: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, events.Event{
		Type:    events.DocumentsReviewed,
		CaseID:  caseID,
		ActorID: p.UserID,
		Payload: map[string]any{"documentIds": ids, "status": status},
	})
	return len(ids), nil
}

// uniqueIDs drops blank and repeated ids, keeping the first occurrence.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DeleteDocument removes a document and its attachment. Only the parent the
// document belongs to, or staff, may delete it.
func DeleteDocument(ctx context.Context, p models.Principal, caseID, docID string) error {
	if _, err := ResolveCaseAccess(ctx, p, caseID); err != nil {
		return err
	}
	d, err := loadDocument(ctx, database.DB, docID)
	if err != nil {
		return err
	}
	if d.CaseID != caseID {
		return notFound("document")
	}
	if !CanDeleteDocument(p, d.Document) {
		return forbidden("delete document")
	}

	if _, err := database.Exec(ctx, database.DB, "DELETE FROM documents WHERE id = ?", docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if d.attachmentKey != "" {
		removeAttachment(ctx, d.attachmentKey)
	}

	publish(ctx, events.Event{Type: events.DocumentDeleted, CaseID: caseID, ActorID: p.UserID, Payload: map[string]any{"documentId": docID}})
	return nil
}

// GetAttachment opens the file attached to a document. The caller closes
// the reader.
func GetAttachment(ctx context.Context, p models.Principal, caseID, docID string) (io.ReadCloser, string, error) {
	if _, err := ResolveCaseAccess(ctx, p, caseID); err != nil {
		return nil, "", err
	}
	d, err := loadDocument(ctx, database.DB, docID)
	if err != nil {
		return nil, "", err
	}
	if d.CaseID != caseID || d.attachmentKey == "" || Attachments == nil {
		return nil, "", notFound("attachment")
	}

	rc, err := Attachments.Open(ctx, d.attachmentKey)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, "", notFound("attachment")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open attachment: %w", err)
	}
	return rc, d.AttachmentType, nil
}

func removeAttachment(ctx context.Context, key string) {
	if Attachments == nil {
		return
	}
	if err := Attachments.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove attachment")
	}
}
