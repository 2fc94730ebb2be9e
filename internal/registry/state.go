package registry

import (
	"fmt"
	"sort"

	"ledger/internal/core"
)

// Summary is the aggregate write-back for one identity.
type Summary struct {
	FirstYearPaid *int
	LastYearPaid  *int
	TotalPaid     core.Money
	GrowthRate    *float64
}

// ApplyClassification records c for the identity id and reports whether it
// changed anything.
//
// Automatic proposals never touch manual classifications, never reset a
// classified vendor to unknown and never replace a correction with unknown.
// Corrections override anything except a
// manual classification. Manual classifications always apply.
func (r *Registry) ApplyClassification(id string, c core.Classification, src core.ClassificationSource, reason string) (bool, error) {
	v, ok := r.vendors[id]
	if !ok {
		return false, fmt.Errorf("classify %s: %w", id, ErrUnknownVendor)
	}

	switch src {
	case core.SourceAuto:
		if v.Source == core.SourceManual {
			return false, nil
		}
		if c.Type == core.Unknown && (v.Classification.Type.IsClassified() || v.Source == core.SourceCorrection) {
			return false, nil
		}
	case core.SourceCorrection:
		if v.Source == core.SourceManual {
			return false, nil
		}
	case core.SourceManual:
	default:
		return false, fmt.Errorf("classify %s: invalid source %q", id, src)
	}

	if v.Classification == c && v.Source == src && v.ExclusionReason == reason {
		return false, nil
	}
	v.Classification = c
	v.Source = src
	v.ExclusionReason = reason
	r.classified[id] = true
	return true, nil
}

// ApplySummary writes the aggregate fields for id.
func (r *Registry) ApplySummary(id string, s Summary) error {
	v, ok := r.vendors[id]
	if !ok {
		return fmt.Errorf("summarize %s: %w", id, ErrUnknownVendor)
	}
	v.FirstYearPaid = s.FirstYearPaid
	v.LastYearPaid = s.LastYearPaid
	v.TotalPaid = s.TotalPaid
	v.GrowthRate = s.GrowthRate
	r.summarized[id] = true
	return nil
}

// Merge folds the result of a run into base, the authoritative on-disk state
// at save time, and returns the merged registry. Neither input is modified.
//
// Identities are never dropped and aliases are unioned. The run's
// classification wins only where the run changed it and base does not hold a
// manual classification; the run's summary wins only where the run wrote one.
// A vendor id bound to different names, or a name bound to different ids,
// is a conflict.
func Merge(base, run *Registry) (*Registry, error) {
	out := base.Clone()
	if run.next > out.next {
		out.next = run.next
	}

	ids := make([]string, 0, len(run.vendors))
	for id := range run.vendors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rv := run.vendors[id]
		bv, ok := out.vendors[id]
		if !ok {
			if other, taken := out.byName[rv.NormalizedName]; taken {
				return nil, fmt.Errorf("%q is %s on disk but %s in this run: %w", rv.NormalizedName, other, id, ErrConflict)
			}
			c := rv.Clone()
			out.vendors[id] = &c
			out.byName[c.NormalizedName] = id
			continue
		}
		if bv.NormalizedName != rv.NormalizedName {
			return nil, fmt.Errorf("%s is %q on disk but %q in this run: %w", id, bv.NormalizedName, rv.NormalizedName, ErrConflict)
		}
		for _, a := range rv.Aliases {
			bv.AddAlias(a)
		}
		if run.classified[id] && (bv.Source != core.SourceManual || rv.Source == core.SourceManual) {
			bv.Classification = rv.Classification
			bv.Source = rv.Source
			bv.ExclusionReason = rv.ExclusionReason
		}
		if run.summarized[id] {
			c := rv.Clone()
			bv.FirstYearPaid = c.FirstYearPaid
			bv.LastYearPaid = c.LastYearPaid
			bv.TotalPaid = c.TotalPaid
			bv.GrowthRate = c.GrowthRate
		}
	}

	for id := range out.vendors {
		if seq, ok := parseSeq(id); ok && seq >= out.next {
			out.next = seq + 1
		}
	}
	return out, nil
}
