package reports

import (
	"bytes"
	"testing"
	"time"

	"coparent/backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var generated = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func sampleReport(period *models.Period) Report {
	d := decimal.RequireFromString
	rec := models.Reconciliation{
		CaseID:  "case-1",
		Period:  period,
		Parent1: models.UserSummary{ID: "p1", Name: "Zoé <Martin>"},
		Parent2: &models.UserSummary{ID: "p2", Name: "Luc Martin"},
		Groups: []models.TypeGroup{{
			TypeID:   "t1",
			TypeName: "Health",
			Categories: []models.CategoryLine{{
				CategoryID:       "c1",
				CategoryName:     "Pharmacy",
				Parent1Validated: d("50"),
				Parent2Validated: d("30"),
				Parent2Pending:   d("12.5"),
			}},
		}},
		Parent1Total: d("50"),
		Parent2Total: d("30"),
		Total:        d("80"),
		Difference:   d("20"),
		InFavorOf:    "p1",
	}
	return New(rec, "https://ledger.example.com", generated)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "PaymentHistory_2023_Q2.pdf", sampleReport(&models.Period{Year: 2023, Quarter: 2}).Filename(FormatPDF))
	assert.Equal(t, "PaymentHistory_2024.xlsx", sampleReport(nil).Filename(FormatXLSX))
}

func TestLink(t *testing.T) {
	assert.Equal(t, "https://ledger.example.com/cases/case-1/reconciliation?quarter=2&year=2023",
		sampleReport(&models.Period{Year: 2023, Quarter: 2}).Link)
	assert.Equal(t, "https://ledger.example.com/cases/case-1/reconciliation", sampleReport(nil).Link)
	assert.Empty(t, New(models.Reconciliation{CaseID: "x"}, "", generated).Link)
}

func TestContentType(t *testing.T) {
	ct, err := ContentType(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)

	_, err = ContentType("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, Render(&bytes.Buffer{}, "docx", sampleReport(nil)), ErrUnknownFormat)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, sampleReport(&models.Period{Year: 2024, Quarter: 1})))

	out := buf.String()
	assert.Contains(t, out, "Payment history 2024 Q1")
	assert.Contains(t, out, "Zoé &lt;Martin&gt;")
	assert.NotContains(t, out, "<Martin>")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "Difference: 20.00 in favour of Zoé &lt;Martin&gt;")
}

func TestRenderHTMLWithoutParent2(t *testing.T) {
	r := sampleReport(nil)
	r.Parent2 = nil
	r.InFavorOf = ""

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, r))
	assert.Contains(t, buf.String(), "Parent 2")
	assert.NotContains(t, buf.String(), "in favour of")
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, sampleReport(&models.Period{Year: 2024, Quarter: 1})))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	r := sampleReport(nil)
	r.Link = ""
	buf.Reset()
	require.NoError(t, Render(&buf, FormatPDF, r))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRenderXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderXLSX(&buf, sampleReport(&models.Period{Year: 2024, Quarter: 1})))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Payment history 2024 Q1", title)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	var difference []string
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Difference" {
			difference = row
		}
	}
	require.Len(t, difference, 3)
	assert.Equal(t, "20", difference[1])
	assert.Equal(t, "Zoé <Martin>", difference[2])
}
