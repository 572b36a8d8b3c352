package reports

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	pdfLineHeight = 6.0
	pdfNameWidth  = 70.0
	pdfColWidth   = 30.0
	qrSize        = 30.0
)

// RenderPDF writes r as an A4 PDF.
func RenderPDF(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := "Payment history " + r.PeriodLabel()
	pdf.SetTitle(title, true)
	pdf.SetCreator("coparent", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s - page %d", r.GeneratedAt.Format("2006-01-02 15:04"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, pdfLineHeight, tr(r.Parent1.Name+" / "+r.Parent2Name()), "", 1, "L", false, 0, "")

	if r.Link != "" {
		png, err := qrcode.Encode(r.Link, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("failed to encode QR code: %w", err)
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
		pageW, _ := pdf.GetPageSize()
		_, _, right, _ := pdf.GetMargins()
		pdf.ImageOptions("qr", pageW-right-qrSize, 10, qrSize, qrSize, false, opts, 0, r.Link)
	}
	pdf.Ln(pdfLineHeight)

	if r.FilterInvalid {
		pdf.CellFormat(0, pdfLineHeight, "The selected period is not valid.", "", 1, "L", false, 0, "")
	}

	pdf.SetY(45)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(pdfNameWidth, pdfLineHeight, "Category", "1", 0, "L", true, 0, "")
	for _, h := range []string{r.Parent1.Name, "pending", r.Parent2Name(), "pending"} {
		pdf.CellFormat(pdfColWidth, pdfLineHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for _, g := range r.Groups {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(pdfNameWidth+4*pdfColWidth, pdfLineHeight, tr(g.TypeName), "1", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range g.Categories {
			pdf.CellFormat(pdfNameWidth, pdfLineHeight, tr(line.CategoryName), "1", 0, "L", false, 0, "")
			for _, v := range []decimal.Decimal{line.Parent1Validated, line.Parent1Pending, line.Parent2Validated, line.Parent2Pending} {
				pdf.CellFormat(pdfColWidth, pdfLineHeight, v.StringFixed(2), "1", 0, "R", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(pdfNameWidth, pdfLineHeight, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(pdfColWidth, pdfLineHeight, r.Parent1Total.StringFixed(2), "1", 0, "R", true, 0, "")
	pdf.CellFormat(pdfColWidth, pdfLineHeight, "", "1", 0, "R", true, 0, "")
	pdf.CellFormat(pdfColWidth, pdfLineHeight, r.Parent2Total.StringFixed(2), "1", 0, "R", true, 0, "")
	pdf.CellFormat(pdfColWidth, pdfLineHeight, "", "1", 1, "R", true, 0, "")
	pdf.Ln(pdfLineHeight)

	pdf.SetFont("Helvetica", "", 11)
	summary := "Difference: " + r.Difference.StringFixed(2)
	if name := r.InFavorOfName(); name != "" {
		summary += " in favour of " + name
	}
	pdf.CellFormat(0, pdfLineHeight, tr(summary), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, pdfLineHeight, fmt.Sprintf("Contribution: %s for %d child(ren), %s / %s",
		r.ContributionAmount.StringFixed(2), r.ChildrenCount, r.Parent1Share.StringFixed(2), r.Parent2Share.StringFixed(2)),
		"", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
