// Package classify assigns an ownership sector, service category and
// confidence to a vendor name.
//
// Classification is an ordered table of rules evaluated first-match-wins.
// A separate correction table, applied after classification, fixes known
// misclassifications of pass-through entities, public institutions and
// aggregate report labels.
package classify

import (
	"fmt"
	"strings"

	"ledger/internal/core"
)

// Rule is one step of the cascade. Apply reports whether the rule decided
// the classification of name.
type Rule struct {
	Name  string
	Apply func(name string) (core.Classification, bool)
}

var publicPatterns = []pattern{
	group("hospital", "health sciences", "health centre", "health center"),
	group("school board", "district school board", "school district"),
	group("city of", "town of", "municipality of", "region of"),
	group("university", "college"),
	group("ontario", "government", "ministry", "crown"),
	group("metrolinx", "hydro one", "ontario power", "infrastructure and lands"),
	group("public health", "health unit"),
	group("children's aid", "childrens aid"),
	group("conservation authority"),
	group("pension plan board"),
	group("independent electricity system operator"),
	group("ontario health", "sante ontario"),
	group("cancer care ontario"),
	group("trillium", "london health", "hamilton health"),
}

var nonProfitPatterns = []pattern{
	group("united way", "red cross", "ymca", "ywca"),
	group("community living", "non-profit", "nonprofit"),
	group("foundation"),
	group("association", "society"),
	group("institute", "institution"),
	group("charity", "charitable"),
}

var forProfitPatterns = []pattern{
	group("inc", "ltd", "llc", "corp", "corporation", "incorporated"),
	group("staffing", "recruitment", "hr", "human resources"),
	group("consulting", "consultant", "consultants", "advisory"),
	group("deloitte", "kpmg", "pwc", "ernst", "mckinsey", "accenture", "ibm"),
	group("lifelabs", "dynacare", "medcan", "shouldice"),
	group("microsoft", "oracle", "sap", "salesforce"),
	group("altis", "randstad", "adecco", "kelly", "manpower"),
	group("group", "holdings", "partner", "partners"),
}

// forProfitSignature decides ownership for healthcare names.
var forProfitSignature = newTermSet(
	"inc", "ltd", "llc", "corp", "corporation", "incorporated",
	"group", "holdings", "partner", "partners",
)

var explicitLegalToken = newTermSet("inc", "ltd")

var (
	healthcareKeywords = newTermSet(
		"lifelabs", "dynacare", "medcan", "shouldice", "clinic", "clinics",
		"diagnostic", "diagnostics", "healthcare", "health care", "health services",
		"medical", "laboratory", "laboratories", "lab", "labs", "health group",
		"health centre", "health center", "health system",
	)
	staffingKeywords = newTermSet(
		"staffing", "recruitment", "hr", "human resources", "temporary", "temp",
		"altis", "randstad", "adecco", "kelly", "manpower", "express employment",
		"robert half", "aerotek", "personnel", "employment services", "workforce",
		"talent", "recruiting", "placement", "staff solutions", "employment agency",
		"temporary help", "temp agency", "staffing solutions", "workforce solutions",
	)
	consultingKeywords = newTermSet(
		"consulting", "consultants", "consultant", "advisory", "deloitte", "kpmg",
		"pwc", "ernst", "mckinsey", "accenture", "ibm", "cgi", "strategy",
		"management consulting",
	)
	itKeywords = newTermSet(
		"microsoft", "oracle", "sap", "salesforce", "ibm", "accenture", "cgi",
		"software", "technology", "it services", "systems", "tech",
	)
)

// SpecialCase is a named entity that does not deliver services in the sense
// the sector taxonomy measures.
type SpecialCase struct {
	Term string
	Note string
}

var specialCases = []SpecialCase{
	{"payments made for services", "Aggregate category"},
	{"interest on ontario securities", "Interest payment"},
	{"accounts under", "Aggregate category"},
	{"dh corporation", "Payment processor for OSAP - funds pass through to students"},
	{"d+h", "Payment processor - funds pass through to end recipients"},
	{"davis + henderson", "Payment processor - funds pass through to end recipients"},
	{"davis & henderson", "Payment processor - funds pass through to end recipients"},
}

var specialCaseSets = func() []termSet {
	out := make([]termSet, len(specialCases))
	for i, sc := range specialCases {
		out[i] = newTermSet(sc.Term)
	}
	return out
}()

// Evidence notes that are not derived from a pattern.
const (
	EvidenceHealthcareForProfit = "Healthcare organization (for-profit)"
	EvidenceHealthcareAmbiguous = "Healthcare organization (needs manual review for type)"
)

// Rules is the classification cascade in precedence order.
var Rules = []Rule{
	{Name: "public", Apply: publicRule},
	{Name: "non_profit", Apply: nonProfitRule},
	{Name: "healthcare", Apply: healthcareRule},
	{Name: "for_profit", Apply: forProfitRule},
	{Name: "special_case", Apply: specialCaseRule},
}

// Classify runs the cascade over name. Names matching no rule get
// core.DefaultClassification.
func Classify(name string) core.Classification {
	c, _ := ClassifyWithRule(name)
	return c
}

// ClassifyWithRule is Classify that also reports which rule decided. The
// rule name is "default" when nothing matched.
func ClassifyWithRule(name string) (core.Classification, string) {
	name = strings.Join(strings.Fields(name), " ")
	for _, r := range Rules {
		if c, ok := r.Apply(name); ok {
			return c, r.Name
		}
	}
	return core.DefaultClassification(), "default"
}

func publicRule(name string) (core.Classification, bool) {
	p, ok := firstMatch(publicPatterns, name)
	if !ok {
		return core.Classification{}, false
	}
	return core.Classification{
		Type:       core.Public,
		Confidence: core.High,
		Evidence:   fmt.Sprintf("Matches public institution pattern: %s", p.source),
	}, true
}

func nonProfitRule(name string) (core.Classification, bool) {
	p, ok := firstMatch(nonProfitPatterns, name)
	if !ok {
		return core.Classification{}, false
	}
	return core.Classification{
		Type:       core.NonProfit,
		Confidence: core.Medium,
		Evidence:   fmt.Sprintf("Matches non-profit pattern: %s", p.source),
	}, true
}

func healthcareRule(name string) (core.Classification, bool) {
	if !healthcareKeywords.match(name) {
		return core.Classification{}, false
	}
	if forProfitSignature.match(name) {
		return core.Classification{
			Type:       core.ForProfit,
			Category:   core.HealthcareDelivery,
			Confidence: core.High,
			Evidence:   EvidenceHealthcareForProfit,
		}, true
	}
	return core.Classification{
		Type:       core.Unknown,
		Category:   core.HealthcareDelivery,
		Confidence: core.Medium,
		Evidence:   EvidenceHealthcareAmbiguous,
	}, true
}

func forProfitRule(name string) (core.Classification, bool) {
	p, ok := firstMatch(forProfitPatterns, name)
	if !ok {
		return core.Classification{}, false
	}
	conf := core.Medium
	if explicitLegalToken.match(name) {
		conf = core.High
	}
	return core.Classification{
		Type:       core.ForProfit,
		Category:   serviceCategory(name),
		Confidence: conf,
		Evidence:   fmt.Sprintf("Matches for-profit pattern: %s", p.source),
	}, true
}

func serviceCategory(name string) core.ServiceCategory {
	switch {
	case staffingKeywords.match(name):
		return core.Staffing
	case consultingKeywords.match(name):
		return core.Consulting
	case itKeywords.match(name):
		return core.IT
	default:
		return core.OtherService
	}
}

func specialCaseRule(name string) (core.Classification, bool) {
	for i, set := range specialCaseSets {
		if set.match(name) {
			return core.Classification{
				Type:       core.Unknown,
				Confidence: core.High,
				Evidence:   specialCases[i].Note,
			}, true
		}
	}
	return core.Classification{}, false
}
