package aggregate

import (
	"sort"

	"ledger/internal/core"
)

// ReviewQueue lists the vendors still classified unknown, largest spend
// first. Vendors a correction deliberately marked unknown and vendors with a
// manual classification are left out. A limit of 0 returns everything.
func ReviewQueue(vendors []core.VendorIdentity, limit int) []core.ReviewItem {
	var out []core.ReviewItem
	for _, v := range vendors {
		if v.Classification.Type != core.Unknown || v.ExclusionReason != "" || v.Source == core.SourceManual {
			continue
		}
		signal := core.SignalNone
		if v.Classification.Confidence != core.Low {
			signal = core.SignalConflicting
		}
		out = append(out, core.ReviewItem{
			VendorID:   v.ID,
			Name:       v.NormalizedName,
			Aliases:    append([]string(nil), v.Aliases...),
			Category:   v.Classification.Category,
			Confidence: v.Classification.Confidence,
			Evidence:   v.Classification.Evidence,
			Signal:     signal,
			TotalPaid:  v.TotalPaid,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPaid.Cents != out[j].TotalPaid.Cents {
			return out[i].TotalPaid.Cents > out[j].TotalPaid.Cents
		}
		return out[i].VendorID < out[j].VendorID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
