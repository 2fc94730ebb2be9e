package sheets

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"ledger/internal/aggregate"
	"ledger/internal/core"
)

// Table names used for published views.
const (
	CompositionTableName = "Composition"
	VendorTableName      = "Vendors"
	LensTablePrefix      = "Lens "
)

// CompositionHeader is the header of the composition table.
var CompositionHeader = []string{"Year", "Public", "Non-profit", "For-profit", "Unknown", "Total"}

// CompositionTable lays out composition rows with amounts in dollars.
func CompositionTable(rows []core.CompositionRow) Table {
	t := Table{
		Name:   CompositionTableName,
		Header: CompositionHeader,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.Year,
			r.Public.Dollars(),
			r.NonProfit.Dollars(),
			r.ForProfit.Dollars(),
			r.Unknown.Dollars(),
			r.Total().Dollars(),
		})
	}
	return t
}

// VendorTable lists the registry's vendors by total paid, highest first,
// keeping at most limit rows. A limit of 0 keeps all of them.
func VendorTable(vendors []core.VendorIdentity, limit int) Table {
	sorted := append([]core.VendorIdentity(nil), vendors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalPaid.Cents != sorted[j].TotalPaid.Cents {
			return sorted[i].TotalPaid.Cents > sorted[j].TotalPaid.Cents
		}
		return sorted[i].ID < sorted[j].ID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	t := Table{
		Name: VendorTableName,
		Header: []string{"Vendor ID", "Vendor", "Type", "Category", "Confidence", "Source",
			"First year", "Last year", "Total", "Growth rate"},
	}
	for _, v := range sorted {
		t.Rows = append(t.Rows, []any{
			v.ID,
			v.DisplayName(),
			string(v.Classification.Type),
			string(v.Classification.Category),
			string(v.Classification.Confidence),
			string(v.Source),
			optYear(v.FirstYearPaid),
			optYear(v.LastYearPaid),
			v.TotalPaid.Dollars(),
			optRate(v.GrowthRate),
		})
	}
	return t
}

func optYear(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func optRate(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

// LensTable lays out one lens with a column per fiscal year seen in any
// of its entries. Years without payments are left blank.
func LensTable(lens core.Lens, entries []core.LensEntry) Table {
	years := lensYears(entries)
	header := []string{"Vendor ID", "Vendor", "Type"}
	for _, y := range years {
		header = append(header, strconv.Itoa(y))
	}
	header = append(header, "Total", "Growth rate")

	t := Table{Name: LensTablePrefix + string(lens), Header: header}
	for _, e := range entries {
		row := []any{e.VendorID, e.Name, string(e.Type)}
		for _, y := range years {
			if m, ok := e.YearlyPayments[y]; ok {
				row = append(row, m.Dollars())
			} else {
				row = append(row, "")
			}
		}
		row = append(row, e.TotalPaid.Dollars(), optRate(e.GrowthRate))
		t.Rows = append(t.Rows, row)
	}
	return t
}

func lensYears(entries []core.LensEntry) []int {
	seen := make(map[int]bool)
	for _, e := range entries {
		for y := range e.YearlyPayments {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// PublishAll pushes the composition table and every lens through p and
// returns the references p reported, in publishing order.
func PublishAll(ctx context.Context, p TablePublisher, res *aggregate.Result) ([]string, error) {
	tables := []Table{CompositionTable(res.Composition)}
	for _, lens := range core.Lenses() {
		tables = append(tables, LensTable(lens, res.Lenses[lens]))
	}

	refs := make([]string, 0, len(tables))
	for _, t := range tables {
		ref, err := p.PublishTable(ctx, t)
		if err != nil {
			return refs, fmt.Errorf("publish %s: %w", t.Name, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
