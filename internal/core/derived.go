package core

// Lens names a category-filtered view of vendors.
type Lens string

const (
	LensStaffing   Lens = "staffing"
	LensConsulting Lens = "consulting"
	LensHealthcare Lens = "healthcare"
)

// Lenses lists every lens in output order.
func Lenses() []Lens {
	return []Lens{LensStaffing, LensConsulting, LensHealthcare}
}

// LensFor returns the lens a service category belongs to, if any.
func LensFor(c ServiceCategory) (Lens, bool) {
	switch c {
	case Staffing:
		return LensStaffing, true
	case Consulting:
		return LensConsulting, true
	case HealthcareDelivery:
		return LensHealthcare, true
	default:
		return "", false
	}
}

func (l Lens) Description() string {
	return "Vendors in the " + string(l) + " category"
}

// CompositionRow is the sector breakdown of one fiscal year.
type CompositionRow struct {
	Year      int
	Public    Money
	NonProfit Money
	ForProfit Money
	Unknown   Money
}

// Total is the sum of the four sector buckets.
func (r CompositionRow) Total() Money {
	return r.Public.Add(r.NonProfit).Add(r.ForProfit).Add(r.Unknown)
}

// Add files amount under the bucket for t. Anything that is not one of the
// three known sectors is counted as unknown.
func (r *CompositionRow) Add(t VendorType, amount Money) {
	switch t {
	case Public:
		r.Public = r.Public.Add(amount)
	case NonProfit:
		r.NonProfit = r.NonProfit.Add(amount)
	case ForProfit:
		r.ForProfit = r.ForProfit.Add(amount)
	default:
		r.Unknown = r.Unknown.Add(amount)
	}
}

// LensEntry is a vendor shown in a lens with its per-year totals.
type LensEntry struct {
	Lens           Lens
	VendorID       string
	Name           string
	Type           VendorType
	Category       ServiceCategory
	YearlyPayments map[int]Money
	TotalPaid      Money
	GrowthRate     *float64
}

// Review signals distinguish a name with no classification signal from one
// whose signals conflict.
const (
	SignalNone        = "no_signal"
	SignalConflicting = "conflicting_signal"
)

// ReviewItem is an unknown vendor waiting for a manual classification.
type ReviewItem struct {
	VendorID   string
	Name       string
	Aliases    []string
	Category   ServiceCategory
	Confidence Confidence
	Evidence   string
	Signal     string
	TotalPaid  Money
}
