// Package aggregate folds payments into per-vendor yearly totals and the
// derived views built on them: sector composition per year, category
// lenses and per-vendor summaries.
//
// Everything is recomputed from the inputs on each call; nothing is
// carried over from a previous run.
package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"ledger/internal/core"
	"ledger/internal/normalize"
	"ledger/internal/registry"
)

// ErrUnknownVendor means a payment's normalized name has no registry entry,
// or a vendor has no classification. Either way the resolve step was
// skipped or corrupted.
var ErrUnknownVendor = errors.New("payment references a vendor missing from the registry")

// Result holds every derived view. Slices are in a fixed order: yearly
// totals by vendor id then year, composition by year, lens entries by total
// paid descending then vendor id.
type Result struct {
	YearlyTotals []core.YearlyTotal
	Composition  []core.CompositionRow
	Lenses       map[core.Lens][]core.LensEntry
	Summaries    map[string]registry.Summary
}

type vendorYear struct {
	id   string
	year int
}

// Aggregate computes all views. Payments whose name normalizes to the
// empty string are skipped, matching the resolve step. Composition keeps
// only years at or after cutoff; summaries and lenses cover all years.
func Aggregate(payments []core.RawPayment, idsByName map[string]string, classifications map[string]core.Classification, cutoff int) (*Result, error) {
	totals := make(map[vendorYear]core.Money)
	ministries := make(map[vendorYear]map[string]core.Money)

	for i, p := range payments {
		name := normalize.Normalize(p.VendorNameRaw)
		if name == "" {
			continue
		}
		id, ok := idsByName[name]
		if !ok {
			return nil, fmt.Errorf("payment %d (%q): %w", i, name, ErrUnknownVendor)
		}
		key := vendorYear{id: id, year: p.FiscalYear}
		totals[key] = totals[key].Add(p.Amount)

		m := ministries[key]
		if m == nil {
			m = make(map[string]core.Money)
			ministries[key] = m
		}
		m[p.Ministry] = m[p.Ministry].Add(p.Amount)
	}

	yearly := make([]core.YearlyTotal, 0, len(totals))
	for key, total := range totals {
		yearly = append(yearly, core.YearlyTotal{
			VendorID: key.id,
			Year:     key.year,
			Total:    total,
			Ministry: topMinistry(ministries[key]),
		})
	}
	sort.Slice(yearly, func(i, j int) bool {
		if yearly[i].VendorID != yearly[j].VendorID {
			return yearly[i].VendorID < yearly[j].VendorID
		}
		return yearly[i].Year < yearly[j].Year
	})

	names := make(map[string]string, len(idsByName))
	for name, id := range idsByName {
		names[id] = name
	}

	res := &Result{
		YearlyTotals: yearly,
		Lenses:       make(map[core.Lens][]core.LensEntry),
		Summaries:    make(map[string]registry.Summary),
	}

	byVendor := groupByVendor(yearly)
	rows := make(map[int]*core.CompositionRow)
	for id, ys := range byVendor {
		c, ok := classifications[id]
		if !ok {
			return nil, fmt.Errorf("vendor %s has no classification: %w", id, ErrUnknownVendor)
		}

		for _, y := range ys {
			if y.Year < cutoff {
				continue
			}
			row := rows[y.Year]
			if row == nil {
				row = &core.CompositionRow{Year: y.Year}
				rows[y.Year] = row
			}
			row.Add(c.Type, y.Total)
		}

		s := summarize(ys)
		res.Summaries[id] = s

		if lens, ok := core.LensFor(c.Category); ok {
			res.Lenses[lens] = append(res.Lenses[lens], core.LensEntry{
				Lens:           lens,
				VendorID:       id,
				Name:           names[id],
				Type:           c.Type,
				Category:       c.Category,
				YearlyPayments: yearlyMap(ys),
				TotalPaid:      s.TotalPaid,
				GrowthRate:     s.GrowthRate,
			})
		}
	}

	res.Composition = make([]core.CompositionRow, 0, len(rows))
	for _, row := range rows {
		res.Composition = append(res.Composition, *row)
	}
	sort.Slice(res.Composition, func(i, j int) bool {
		return res.Composition[i].Year < res.Composition[j].Year
	})

	for _, entries := range res.Lenses {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].TotalPaid.Cents != entries[j].TotalPaid.Cents {
				return entries[i].TotalPaid.Cents > entries[j].TotalPaid.Cents
			}
			return entries[i].VendorID < entries[j].VendorID
		})
	}
	return res, nil
}

// groupByVendor splits sorted yearly totals into per-vendor runs, each
// still ordered by year.
func groupByVendor(yearly []core.YearlyTotal) map[string][]core.YearlyTotal {
	out := make(map[string][]core.YearlyTotal)
	for _, y := range yearly {
		out[y.VendorID] = append(out[y.VendorID], y)
	}
	return out
}

// summarize expects ys ordered by year.
func summarize(ys []core.YearlyTotal) registry.Summary {
	var s registry.Summary
	if len(ys) == 0 {
		return s
	}
	for _, y := range ys {
		s.TotalPaid = s.TotalPaid.Add(y.Total)
	}
	first, last := ys[0], ys[len(ys)-1]
	fy, ly := first.Year, last.Year
	s.FirstYearPaid = &fy
	s.LastYearPaid = &ly
	s.GrowthRate = GrowthRate(ys)
	return s
}

// GrowthRate is the relative change from the earliest to the latest year
// in ys, which must be ordered by year. It is nil when ys covers fewer
// than two years or the earliest total is not positive.
func GrowthRate(ys []core.YearlyTotal) *float64 {
	if len(ys) < 2 {
		return nil
	}
	first, last := ys[0], ys[len(ys)-1]
	if first.Year == last.Year || !first.Total.IsPositive() {
		return nil
	}
	g := float64(last.Total.Cents-first.Total.Cents) / float64(first.Total.Cents)
	return &g
}

func yearlyMap(ys []core.YearlyTotal) map[int]core.Money {
	out := make(map[int]core.Money, len(ys))
	for _, y := range ys {
		out[y.Year] = y.Total
	}
	return out
}

// topMinistry returns the ministry with the largest total, breaking ties by
// name.
func topMinistry(m map[string]core.Money) string {
	best, found := "", false
	var bestTotal core.Money
	for name, total := range m {
		if !found || total.Cents > bestTotal.Cents || total.Cents == bestTotal.Cents && name < best {
			best, bestTotal, found = name, total, true
		}
	}
	return best
}
