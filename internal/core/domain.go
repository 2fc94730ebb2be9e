package core

import (
	"errors"
	"sort"
	"strings"
)

// Sectors of the ownership taxonomy.
const (
	Public    VendorType = "public"
	NonProfit VendorType = "non_profit"
	ForProfit VendorType = "for_profit"
	Unknown   VendorType = "unknown"
)

// Service sub-categories. NoCategory is the null category.
const (
	NoCategory         ServiceCategory = ""
	Staffing           ServiceCategory = "staffing"
	Consulting         ServiceCategory = "consulting"
	HealthcareDelivery ServiceCategory = "healthcare_delivery"
	IT                 ServiceCategory = "IT"
	OtherService       ServiceCategory = "other"
)

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// Where a classification came from. Manual classifications are edits made
// directly against the persisted registry and are never overwritten by a run.
const (
	SourceAuto       ClassificationSource = "auto"
	SourceCorrection ClassificationSource = "correction"
	SourceManual     ClassificationSource = "manual"
)

type (
	VendorType           string
	ServiceCategory      string
	Confidence           string
	ClassificationSource string

	// RawPayment is one line of a payment schedule after ingestion.
	RawPayment struct {
		FiscalYear    int
		VendorNameRaw string
		Amount        Money
		Ministry      string
	}

	// Classification is what the classifier proposes for a vendor name.
	Classification struct {
		Type       VendorType
		Category   ServiceCategory
		Confidence Confidence
		Evidence   string
	}

	// VendorIdentity is one deduplicated payee. NormalizedName is the
	// deduplication key; ID never changes once assigned.
	VendorIdentity struct {
		ID              string
		NormalizedName  string
		Aliases         []string // sorted, unique
		Classification  Classification
		Source          ClassificationSource
		ExclusionReason string
		FirstYearPaid   *int
		LastYearPaid    *int
		TotalPaid       Money
		GrowthRate      *float64
	}

	// YearlyTotal is the sum of payments to one vendor in one fiscal year.
	// Ministry is the ministry that paid the largest share of it.
	YearlyTotal struct {
		VendorID string
		Year     int
		Total    Money
		Ministry string
	}
)

var (
	ErrEmptyVendorName = errors.New("empty vendor name")
	ErrInvalidYear     = errors.New("invalid fiscal year")
	ErrInvalidType     = errors.New("invalid vendor type")
)

// DefaultClassification is the state of a freshly created identity.
func DefaultClassification() Classification {
	return Classification{
		Type:       Unknown,
		Confidence: Low,
		Evidence:   "No pattern match - needs manual review",
	}
}

func (t VendorType) IsValid() bool {
	switch t {
	case Public, NonProfit, ForProfit, Unknown:
		return true
	default:
		return false
	}
}

// IsClassified reports whether t is one of the three known sectors.
func (t VendorType) IsClassified() bool {
	return t == Public || t == NonProfit || t == ForProfit
}

// ParseVendorType accepts the persisted spelling of a vendor type.
func ParseVendorType(s string) (VendorType, error) {
	t := VendorType(strings.TrimSpace(strings.ToLower(s)))
	if t == "nonprofit" || t == "non-profit" {
		t = NonProfit
	}
	if !t.IsValid() {
		return Unknown, ErrInvalidType
	}
	return t, nil
}

func (c ServiceCategory) IsValid() bool {
	switch c {
	case NoCategory, Staffing, Consulting, HealthcareDelivery, IT, OtherService:
		return true
	default:
		return false
	}
}

func (c Confidence) IsValid() bool {
	return c == Low || c == Medium || c == High
}

func (s ClassificationSource) IsValid() bool {
	return s == SourceAuto || s == SourceCorrection || s == SourceManual
}

func (p RawPayment) Validate() error {
	if strings.TrimSpace(p.VendorNameRaw) == "" {
		return ErrEmptyVendorName
	}
	if p.FiscalYear <= 0 {
		return ErrInvalidYear
	}
	return p.Amount.Validate()
}

// AddAlias inserts raw keeping Aliases sorted. It returns false if raw was
// already present.
func (v *VendorIdentity) AddAlias(raw string) bool {
	i := sort.SearchStrings(v.Aliases, raw)
	if i < len(v.Aliases) && v.Aliases[i] == raw {
		return false
	}
	v.Aliases = append(v.Aliases, "")
	copy(v.Aliases[i+1:], v.Aliases[i:])
	v.Aliases[i] = raw
	return true
}

// DisplayName is the name the classifier sees: the longest alias, since it
// most often still carries the legal suffix the normalizer strips.
func (v *VendorIdentity) DisplayName() string {
	best := ""
	for _, a := range v.Aliases {
		if len([]rune(a)) > len([]rune(best)) {
			best = a
		}
	}
	if best == "" {
		return v.NormalizedName
	}
	return best
}

// Clone returns a deep copy.
func (v VendorIdentity) Clone() VendorIdentity {
	out := v
	out.Aliases = append([]string(nil), v.Aliases...)
	if v.FirstYearPaid != nil {
		y := *v.FirstYearPaid
		out.FirstYearPaid = &y
	}
	if v.LastYearPaid != nil {
		y := *v.LastYearPaid
		out.LastYearPaid = &y
	}
	if v.GrowthRate != nil {
		g := *v.GrowthRate
		out.GrowthRate = &g
	}
	return out
}
