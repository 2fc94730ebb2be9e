// Package export writes the presentation datasets of a run: JSON files for
// the web front end and an XLSX workbook for analysts.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"ledger/internal/aggregate"
	"ledger/internal/core"
)

// Dataset file names, relative to the output directory.
const (
	PaymentsByYearFile = "payments_by_year.json"
	CompositionFile    = "system_composition.json"
	VendorTableFile    = "vendor_table.json"
	lensFilePrefix     = "lens_"
)

// LensFile is the dataset file name of a lens.
func LensFile(l core.Lens) string {
	return lensFilePrefix + string(l) + ".json"
}

type (
	PaymentByYear struct {
		FiscalYear int     `json:"fiscal_year"`
		VendorID   string  `json:"vendor_id"`
		VendorName string  `json:"vendor_name_normalized"`
		Ministry   string  `json:"ministry,omitempty"`
		TotalPaid  float64 `json:"total_paid"`
	}

	CompositionRecord struct {
		Year           int     `json:"year"`
		PublicTotal    float64 `json:"public_total"`
		NonProfitTotal float64 `json:"non_profit_total"`
		ForProfitTotal float64 `json:"for_profit_total"`
		UnknownTotal   float64 `json:"unknown_total"`
		Total          float64 `json:"total"`
	}

	VendorRecord struct {
		VendorID        string             `json:"vendor_id"`
		VendorName      string             `json:"vendor_name_normalized"`
		Aliases         []string           `json:"vendor_name_aliases"`
		VendorType      string             `json:"vendor_type"`
		ServiceCategory *string            `json:"service_category"`
		Confidence      string             `json:"confidence"`
		EvidenceNote    string             `json:"evidence_note"`
		Source          string             `json:"classification_source"`
		ExclusionReason string             `json:"exclusion_reason,omitempty"`
		FirstYearPaid   *int               `json:"first_year_paid"`
		LastYearPaid    *int               `json:"last_year_paid"`
		TotalPaid       float64            `json:"total_paid_all_years"`
		GrowthRate      *float64           `json:"growth_rate"`
		YearlyPayments  map[string]float64 `json:"yearly_payments"`
	}

	LensVendor struct {
		VendorID       string             `json:"vendor_id"`
		VendorName     string             `json:"vendor_name_normalized"`
		VendorType     string             `json:"vendor_type"`
		YearlyPayments map[string]float64 `json:"yearly_payments"`
		TotalPaid      float64            `json:"total_paid_all_years"`
		GrowthRate     *float64           `json:"growth_rate"`
	}

	LensDataset struct {
		Lens        string       `json:"lens"`
		Description string       `json:"description"`
		RunID       string       `json:"run_id"`
		Vendors     []LensVendor `json:"vendors"`
	}

	// Datasets is everything a run publishes, in output order.
	Datasets struct {
		RunID          string
		PaymentsByYear []PaymentByYear
		Composition    []CompositionRecord
		Vendors        []VendorRecord
		Lenses         []LensDataset
	}
)

// Build lays out the datasets for one run. vendors is the registry after
// write-back; payments by year keep only years at or after cutoff.
func Build(runID string, vendors []core.VendorIdentity, res *aggregate.Result, cutoff int) *Datasets {
	d := &Datasets{RunID: runID}

	names := make(map[string]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.NormalizedName
	}

	yearly := make(map[string]map[string]float64)
	for _, yt := range res.YearlyTotals {
		m := yearly[yt.VendorID]
		if m == nil {
			m = make(map[string]float64)
			yearly[yt.VendorID] = m
		}
		m[strconv.Itoa(yt.Year)] = yt.Total.Dollars()

		if yt.Year >= cutoff {
			d.PaymentsByYear = append(d.PaymentsByYear, PaymentByYear{
				FiscalYear: yt.Year,
				VendorID:   yt.VendorID,
				VendorName: names[yt.VendorID],
				Ministry:   yt.Ministry,
				TotalPaid:  yt.Total.Dollars(),
			})
		}
	}
	sort.SliceStable(d.PaymentsByYear, func(i, j int) bool {
		a, b := d.PaymentsByYear[i], d.PaymentsByYear[j]
		if a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		return a.VendorID < b.VendorID
	})

	for _, r := range res.Composition {
		d.Composition = append(d.Composition, CompositionRecord{
			Year:           r.Year,
			PublicTotal:    r.Public.Dollars(),
			NonProfitTotal: r.NonProfit.Dollars(),
			ForProfitTotal: r.ForProfit.Dollars(),
			UnknownTotal:   r.Unknown.Dollars(),
			Total:          r.Total().Dollars(),
		})
	}

	for _, v := range vendors {
		rec := VendorRecord{
			VendorID:        v.ID,
			VendorName:      v.NormalizedName,
			Aliases:         append([]string{}, v.Aliases...),
			VendorType:      string(v.Classification.Type),
			Confidence:      string(v.Classification.Confidence),
			EvidenceNote:    v.Classification.Evidence,
			Source:          string(v.Source),
			ExclusionReason: v.ExclusionReason,
			FirstYearPaid:   v.FirstYearPaid,
			LastYearPaid:    v.LastYearPaid,
			TotalPaid:       v.TotalPaid.Dollars(),
			GrowthRate:      v.GrowthRate,
			YearlyPayments:  yearly[v.ID],
		}
		if c := v.Classification.Category; c != core.NoCategory {
			s := string(c)
			rec.ServiceCategory = &s
		}
		if rec.YearlyPayments == nil {
			rec.YearlyPayments = map[string]float64{}
		}
		d.Vendors = append(d.Vendors, rec)
	}

	for _, l := range core.Lenses() {
		ds := LensDataset{Lens: string(l), Description: l.Description(), RunID: runID, Vendors: []LensVendor{}}
		for _, e := range res.Lenses[l] {
			lv := LensVendor{
				VendorID:       e.VendorID,
				VendorName:     e.Name,
				VendorType:     string(e.Type),
				YearlyPayments: make(map[string]float64, len(e.YearlyPayments)),
				TotalPaid:      e.TotalPaid.Dollars(),
				GrowthRate:     e.GrowthRate,
			}
			for y, m := range e.YearlyPayments {
				lv.YearlyPayments[strconv.Itoa(y)] = m.Dollars()
			}
			ds.Vendors = append(ds.Vendors, lv)
		}
		d.Lenses = append(d.Lenses, ds)
	}
	return d
}

// Service writes datasets to disk.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteJSON writes every dataset into dir and returns the paths written.
func (s *Service) WriteJSON(ctx context.Context, dir string, d *Datasets) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{PaymentsByYearFile, nonNil(d.PaymentsByYear)},
		{CompositionFile, nonNil(d.Composition)},
		{VendorTableFile, nonNil(d.Vendors)},
	}
	for _, l := range d.Lenses {
		files = append(files, struct {
			name string
			v    any
		}{LensFile(core.Lens(l.Lens)), l})
	}

	var written []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(dir, f.name)
		data, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encode %s: %w", f.name, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}

	s.logger.InfoContext(ctx, "export.json.ok",
		"run_id", d.RunID,
		"dir", dir,
		"files", len(written),
		"vendors", len(d.Vendors))
	return written, nil
}

// nonNil keeps empty datasets as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
