package reports

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Reconciliation"

// sheetWriter appends rows to a sheet and keeps the first error.
type sheetWriter struct {
	f   *excelize.File
	row int
	err error
}

func (s *sheetWriter) add(style int, values ...any) {
	if s.err != nil {
		return
	}
	s.row++
	from, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		s.err = err
		return
	}
	if s.err = s.f.SetSheetRow(sheetName, from, &values); s.err != nil {
		return
	}
	if style != 0 {
		to, _ := excelize.CoordinatesToCellName(5, s.row)
		s.err = s.f.SetCellStyle(sheetName, from, to, style)
	}
}

func (s *sheetWriter) skip() { s.row++ }

func amount(d decimal.Decimal) float64 { return d.InexactFloat64() }

// RenderXLSX writes r as a single-sheet workbook.
func RenderXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	s := &sheetWriter{f: f}
	s.add(bold, "Payment history "+r.PeriodLabel())
	s.add(0, r.Parent1.Name, r.Parent2Name())
	s.skip()
	s.add(bold, "Category", r.Parent1.Name, r.Parent1.Name+" (pending)", r.Parent2Name(), r.Parent2Name()+" (pending)")

	for _, g := range r.Groups {
		s.add(bold, g.TypeName)
		for _, line := range g.Categories {
			s.add(money, line.CategoryName,
				amount(line.Parent1Validated), amount(line.Parent1Pending),
				amount(line.Parent2Validated), amount(line.Parent2Pending))
		}
	}

	s.add(bold, "Total", amount(r.Parent1Total), nil, amount(r.Parent2Total))
	s.skip()
	s.add(0, "Difference", amount(r.Difference), r.InFavorOfName())
	s.add(0, "Contribution", amount(r.ContributionAmount), amount(r.Parent1Share), amount(r.Parent2Share))
	s.add(0, "Children", r.ChildrenCount)
	if s.err != nil {
		return fmt.Errorf("failed to fill workbook: %w", s.err)
	}

	if err := f.SetColWidth(sheetName, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "E", 18); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
