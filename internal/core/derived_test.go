package core

import "testing"

func TestCompositionRowAdd(t *testing.T) {
	var r CompositionRow
	r.Add(Public, Money{Cents: 100})
	r.Add(NonProfit, Money{Cents: 200})
	r.Add(ForProfit, Money{Cents: 300})
	r.Add(Unknown, Money{Cents: 400})
	r.Add(VendorType("retired"), Money{Cents: 500})

	if r.Unknown.Cents != 900 {
		t.Fatalf("unrecognized types should fold into unknown, got %d", r.Unknown.Cents)
	}
	if r.Total().Cents != 1500 {
		t.Fatalf("Total = %d, want 1500", r.Total().Cents)
	}
}

func TestLensFor(t *testing.T) {
	tests := []struct {
		category ServiceCategory
		want     Lens
		ok       bool
	}{
		{Staffing, LensStaffing, true},
		{Consulting, LensConsulting, true},
		{HealthcareDelivery, LensHealthcare, true},
		{IT, "", false},
		{OtherService, "", false},
		{NoCategory, "", false},
	}
	for _, tt := range tests {
		got, ok := LensFor(tt.category)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LensFor(%q) = %q, %v; want %q, %v", tt.category, got, ok, tt.want, tt.ok)
		}
	}
	if len(Lenses()) != 3 {
		t.Fatalf("expected three lenses")
	}
}
