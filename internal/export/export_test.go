package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"ledger/internal/aggregate"
	"ledger/internal/core"
	"ledger/internal/normalize"
	"ledger/internal/registry"
)

func fixture(t *testing.T) ([]core.VendorIdentity, *aggregate.Result) {
	t.Helper()
	payments := []core.RawPayment{
		{FiscalYear: 2017, VendorNameRaw: "Randstad Canada Inc.", Amount: core.Money{Cents: 5000}, Ministry: "Health"},
		{FiscalYear: 2018, VendorNameRaw: "Randstad Canada Inc.", Amount: core.Money{Cents: 10000}, Ministry: "Health"},
		{FiscalYear: 2019, VendorNameRaw: "RANDSTAD CANADA", Amount: core.Money{Cents: 20000}, Ministry: "Education"},
		{FiscalYear: 2019, VendorNameRaw: "City of Toronto", Amount: core.Money{Cents: 12345}, Ministry: "Transportation"},
	}
	reg := registry.New()
	for _, p := range payments {
		if _, err := reg.Resolve(normalize.Normalize(p.VendorNameRaw), p.VendorNameRaw); err != nil {
			t.Fatal(err)
		}
	}
	randstad, _ := reg.Lookup("Randstad Canada")
	toronto, _ := reg.Lookup("City Of Toronto")
	reg.ApplyClassification(randstad, core.Classification{Type: core.ForProfit, Category: core.Staffing, Confidence: core.High, Evidence: "staffing"}, core.SourceAuto, "")
	reg.ApplyClassification(toronto, core.Classification{Type: core.Public, Confidence: core.High, Evidence: "city"}, core.SourceAuto, "")

	res, err := aggregate.Aggregate(payments, reg.IDsByName(), reg.Classifications(), 2018)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for id, s := range res.Summaries {
		if err := reg.ApplySummary(id, s); err != nil {
			t.Fatal(err)
		}
	}
	return reg.Vendors(), res
}

func TestBuild(t *testing.T) {
	vendors, res := fixture(t)
	d := Build("run-1", vendors, res, 2018)

	if len(d.PaymentsByYear) != 3 {
		t.Fatalf("PaymentsByYear = %+v", d.PaymentsByYear)
	}
	first := d.PaymentsByYear[0]
	if first.FiscalYear != 2018 || first.VendorName != "Randstad Canada" || first.TotalPaid != 100 || first.Ministry != "Health" {
		t.Errorf("first payment row = %+v", first)
	}

	if len(d.Composition) != 2 || d.Composition[1].PublicTotal != 123.45 || d.Composition[1].ForProfitTotal != 200 {
		t.Errorf("Composition = %+v", d.Composition)
	}

	if len(d.Vendors) != 2 {
		t.Fatalf("Vendors = %+v", d.Vendors)
	}
	r := d.Vendors[0]
	if r.ServiceCategory == nil || *r.ServiceCategory != "staffing" || r.TotalPaid != 350 {
		t.Errorf("Randstad record = %+v", r)
	}
	if !reflect.DeepEqual(r.YearlyPayments, map[string]float64{"2017": 50, "2018": 100, "2019": 200}) {
		t.Errorf("YearlyPayments = %v", r.YearlyPayments)
	}
	if d.Vendors[1].ServiceCategory != nil {
		t.Errorf("public vendor should have null category")
	}

	if len(d.Lenses) != 3 || d.Lenses[0].Lens != "staffing" || len(d.Lenses[0].Vendors) != 1 {
		t.Fatalf("Lenses = %+v", d.Lenses)
	}
	if d.Lenses[0].Description != "Vendors in the staffing category" || d.Lenses[0].RunID != "run-1" {
		t.Errorf("lens header = %+v", d.Lenses[0])
	}
	if g := d.Lenses[0].Vendors[0].GrowthRate; g == nil || *g != 3 {
		t.Errorf("growth = %v", g)
	}
}

func TestWriteJSON(t *testing.T) {
	vendors, res := fixture(t)
	d := Build("run-1", vendors, res, 2018)
	dir := filepath.Join(t.TempDir(), "processed")

	paths, err := NewService(nil).WriteJSON(context.Background(), dir, d)
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if len(paths) != 6 {
		t.Fatalf("wrote %v", paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, CompositionFile))
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("decode composition: %v", err)
	}
	if len(rows) != 2 || rows[0]["year"] != 2018.0 || rows[0]["for_profit_total"] != 100.0 {
		t.Errorf("composition = %v", rows)
	}

	data, _ = os.ReadFile(filepath.Join(dir, LensFile(core.LensConsulting)))
	var lens LensDataset
	if err := json.Unmarshal(data, &lens); err != nil {
		t.Fatalf("decode lens: %v", err)
	}
	if lens.Lens != "consulting" || lens.Vendors == nil || len(lens.Vendors) != 0 {
		t.Errorf("empty lens = %+v", lens)
	}
}

func TestWriteJSONEmptyRun(t *testing.T) {
	d := Build("run-0", nil, &aggregate.Result{}, 2018)
	dir := t.TempDir()
	if _, err := NewService(nil).WriteJSON(context.Background(), dir, d); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, VendorTableFile))
	if string(data) != "[]\n" {
		t.Errorf("empty vendor table = %q", data)
	}
}

func TestWriteWorkbook(t *testing.T) {
	vendors, res := fixture(t)
	d := Build("run-1", vendors, res, 2018)
	review := []core.ReviewItem{{VendorID: "V00009", Name: "Mystery Co", Signal: core.SignalNone, Confidence: core.Low, TotalPaid: core.Money{Cents: 999}}}
	path := filepath.Join(t.TempDir(), "out", "ledger.xlsx")

	if err := NewService(nil).WriteWorkbook(context.Background(), path, d, review); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	want := []string{"Composition", "Vendors", "Lens staffing", "Lens consulting", "Lens healthcare", "Review"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Errorf("sheets = %v, want %v", got, want)
	}

	cells := map[string]map[string]string{
		"Composition":   {"A1": "Year", "A2": "2018", "B3": "123.45", "D3": "200"},
		"Vendors":       {"A2": "V00000", "B2": "Randstad Canada", "D2": "staffing", "D3": ""},
		"Lens staffing": {"D1": "2017", "F1": "2019", "F2": "200", "G2": "350"},
		"Review":        {"B2": "V00009", "D2": "no_signal", "G2": "9.99"},
	}
	for sheet, m := range cells {
		for cell, want := range m {
			got, err := f.GetCellValue(sheet, cell)
			if err != nil {
				t.Fatalf("%s!%s: %v", sheet, cell, err)
			}
			if got != want {
				t.Errorf("%s!%s = %q, want %q", sheet, cell, got, want)
			}
		}
	}
}

func TestWriteReviewWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.xlsx")
	if err := NewService(nil).WriteReviewWorkbook(context.Background(), path, nil); err != nil {
		t.Fatalf("WriteReviewWorkbook: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Review"}) {
		t.Errorf("sheets = %v", got)
	}
}
