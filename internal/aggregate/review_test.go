package aggregate

import (
	"testing"

	"ledger/internal/core"
)

func TestReviewQueue(t *testing.T) {
	unknown := func(id string, cents int64, conf core.Confidence) core.VendorIdentity {
		return core.VendorIdentity{
			ID:             id,
			NormalizedName: "Vendor " + id,
			Aliases:        []string{"Vendor " + id},
			Classification: core.Classification{Type: core.Unknown, Confidence: conf},
			Source:         core.SourceAuto,
			TotalPaid:      core.Money{Cents: cents},
		}
	}

	excluded := unknown("V00004", 900, core.High)
	excluded.ExclusionReason = "Pass-through payment processor"
	excluded.Source = core.SourceCorrection
	manual := unknown("V00005", 800, core.Low)
	manual.Source = core.SourceManual
	classified := unknown("V00006", 700, core.High)
	classified.Classification.Type = core.Public

	vendors := []core.VendorIdentity{
		unknown("V00001", 100, core.Low),
		unknown("V00002", 500, core.Medium),
		unknown("V00003", 500, core.Low),
		excluded, manual, classified,
	}

	got := ReviewQueue(vendors, 0)
	wantIDs := []string{"V00002", "V00003", "V00001"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d items, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].VendorID != id {
			t.Errorf("item %d = %s, want %s", i, got[i].VendorID, id)
		}
	}
	if got[0].Signal != core.SignalConflicting || got[1].Signal != core.SignalNone {
		t.Errorf("signals = %s, %s", got[0].Signal, got[1].Signal)
	}

	if top := ReviewQueue(vendors, 2); len(top) != 2 || top[1].VendorID != "V00003" {
		t.Errorf("limit not applied: %+v", top)
	}
}
