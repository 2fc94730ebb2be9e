package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
)

// Workbook sheet names.
const (
	SheetComposition = "Composition"
	SheetVendors     = "Vendors"
	SheetReview      = "Review"
	lensSheetPrefix  = "Lens "
)

// Workbook builds an XLSX file with the composition table, the vendor
// table, one sheet per lens and the review queue.
func Workbook(d *Datasets, review []core.ReviewItem) (*excelize.File, error) {
	f := excelize.NewFile()
	first := true
	sheet := func(name string) (string, error) {
		if first {
			first = false
			return name, f.SetSheetName(f.GetSheetName(0), name)
		}
		_, err := f.NewSheet(name)
		return name, err
	}

	name, err := sheet(SheetComposition)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(d.Composition))
	for _, r := range d.Composition {
		rows = append(rows, []any{r.Year, r.PublicTotal, r.NonProfitTotal, r.ForProfitTotal, r.UnknownTotal, r.Total})
	}
	if err := writeSheet(f, name, []string{"Year", "Public", "Non-profit", "For-profit", "Unknown", "Total"}, rows); err != nil {
		return nil, err
	}

	if name, err = sheet(SheetVendors); err != nil {
		return nil, err
	}
	rows = rows[:0]
	for _, v := range d.Vendors {
		category := ""
		if v.ServiceCategory != nil {
			category = *v.ServiceCategory
		}
		rows = append(rows, []any{
			v.VendorID, v.VendorName, v.VendorType, category, v.Confidence, v.Source,
			v.EvidenceNote, v.ExclusionReason, optInt(v.FirstYearPaid), optInt(v.LastYearPaid),
			v.TotalPaid, optFloat(v.GrowthRate),
		})
	}
	vendorHeader := []string{"Vendor ID", "Vendor", "Type", "Category", "Confidence", "Source",
		"Evidence", "Exclusion reason", "First year", "Last year", "Total paid", "Growth rate"}
	if err := writeSheet(f, name, vendorHeader, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(name, "B", "B", 40)
	_ = f.SetColWidth(name, "G", "H", 48)

	for _, l := range d.Lenses {
		if name, err = sheet(lensSheetPrefix + l.Lens); err != nil {
			return nil, err
		}
		years := lensYears(l.Vendors)
		header := []string{"Vendor ID", "Vendor", "Type"}
		header = append(header, years...)
		header = append(header, "Total", "Growth rate")
		rows = rows[:0]
		for _, v := range l.Vendors {
			row := []any{v.VendorID, v.VendorName, v.VendorType}
			for _, y := range years {
				if amt, ok := v.YearlyPayments[y]; ok {
					row = append(row, amt)
				} else {
					row = append(row, nil)
				}
			}
			row = append(row, v.TotalPaid, optFloat(v.GrowthRate))
			rows = append(rows, row)
		}
		if err := writeSheet(f, name, header, rows); err != nil {
			return nil, err
		}
	}

	if err := reviewSheet(f, sheet, review); err != nil {
		return nil, err
	}

	idx, _ := f.GetSheetIndex(SheetComposition)
	f.SetActiveSheet(idx)
	return f, nil
}

// ReviewWorkbook builds a workbook holding only the review queue.
func ReviewWorkbook(review []core.ReviewItem) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := func(name string) (string, error) {
		return name, f.SetSheetName(f.GetSheetName(0), name)
	}
	if err := reviewSheet(f, sheet, review); err != nil {
		return nil, err
	}
	return f, nil
}

func reviewSheet(f *excelize.File, sheet func(string) (string, error), review []core.ReviewItem) error {
	name, err := sheet(SheetReview)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(review))
	for i, it := range review {
		rows = append(rows, []any{
			i + 1, it.VendorID, it.Name, it.Signal, string(it.Confidence), string(it.Category),
			it.TotalPaid.Dollars(), it.Evidence,
		})
	}
	header := []string{"Rank", "Vendor ID", "Vendor", "Signal", "Confidence", "Category", "Total paid", "Evidence"}
	if err := writeSheet(f, name, header, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(name, "C", "C", 40)
	_ = f.SetColWidth(name, "H", "H", 60)
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

func lensYears(vendors []LensVendor) []string {
	seen := make(map[int]bool)
	for _, v := range vendors {
		for y := range v.YearlyPayments {
			if n, err := strconv.Atoi(y); err == nil {
				seen[n] = true
			}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = strconv.Itoa(y)
	}
	return out
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// WriteWorkbook saves the full workbook to path.
func (s *Service) WriteWorkbook(ctx context.Context, path string, d *Datasets, review []core.ReviewItem) error {
	start := time.Now()
	f, err := Workbook(d, review)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()

	if err := saveAs(f, path); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "export.xlsx.ok",
		"run_id", d.RunID,
		"path", path,
		"vendors", len(d.Vendors),
		"review", len(review),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// WriteReviewWorkbook saves the review queue alone to path.
func (s *Service) WriteReviewWorkbook(ctx context.Context, path string, review []core.ReviewItem) error {
	f, err := ReviewWorkbook(review)
	if err != nil {
		return fmt.Errorf("build review workbook: %w", err)
	}
	defer f.Close()

	if err := saveAs(f, path); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "export.review.ok", "path", path, "review", len(review))
	return nil
}

func saveAs(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workbook directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
