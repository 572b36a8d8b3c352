// Package reports renders a reconciliation as a downloadable document.
package reports

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"coparent/backend/models"
)

// Export formats
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatHTML = "html"
)

var ErrUnknownFormat = errors.New("unknown export format")

var contentTypes = map[string]string{
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatHTML: "text/html; charset=utf-8",
}

// Report is a reconciliation ready to be rendered.
type Report struct {
	models.Reconciliation
	GeneratedAt time.Time
	// Link points back to the reconciliation page. The PDF carries it as a
	// QR code; an empty link leaves the code out.
	Link string
}

// New builds the report of r. baseURL is the public address of the
// application and may be empty.
func New(r models.Reconciliation, baseURL string, now time.Time) Report {
	return Report{Reconciliation: r, GeneratedAt: now, Link: reconciliationLink(baseURL, r)}
}

func reconciliationLink(baseURL string, r models.Reconciliation) string {
	if baseURL == "" {
		return ""
	}
	link, err := url.JoinPath(baseURL, "cases", r.CaseID, "reconciliation")
	if err != nil {
		return ""
	}
	if r.Period != nil {
		q := url.Values{}
		q.Set("year", strconv.Itoa(r.Period.Year))
		q.Set("quarter", strconv.Itoa(r.Period.Quarter))
		link += "?" + q.Encode()
	}
	return link
}

// Year is the year the report covers. Without a filter it is the year the
// report was generated.
func (r Report) Year() int {
	if r.Period != nil {
		return r.Period.Year
	}
	return r.GeneratedAt.Year()
}

// PeriodLabel describes the covered period for titles.
func (r Report) PeriodLabel() string {
	if r.Period == nil {
		return "All periods"
	}
	return fmt.Sprintf("%d Q%d", r.Period.Year, r.Period.Quarter)
}

func (r Report) Parent2Name() string {
	if r.Parent2 == nil {
		return "Parent 2"
	}
	return r.Parent2.Name
}

// Filename returns PaymentHistory_<year>[_Q<quarter>].<format>.
func (r Report) Filename(format string) string {
	if r.Period == nil {
		return fmt.Sprintf("PaymentHistory_%d.%s", r.Year(), format)
	}
	return fmt.Sprintf("PaymentHistory_%d_Q%d.%s", r.Period.Year, r.Period.Quarter, format)
}

// ContentType returns the MIME type of format.
func ContentType(format string) (string, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return ct, nil
}

// Render writes r to w in the given format.
func Render(w io.Writer, format string, r Report) error {
	switch format {
	case FormatPDF:
		return RenderPDF(w, r)
	case FormatXLSX:
		return RenderXLSX(w, r)
	case FormatHTML:
		return RenderHTML(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
