package classify

import (
	"strings"
	"testing"

	"ledger/internal/core"
)

func TestClassifyScenarios(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType core.VendorType
		wantCat  core.ServiceCategory
		wantConf core.Confidence
		wantRule string
	}{
		{"staffing with Inc", "Randstad Canada Inc.", core.ForProfit, core.Staffing, core.High, "for_profit"},
		{"municipality", "City of Toronto", core.Public, core.NoCategory, core.High, "public"},
		{"no signal", "Unknown Entity XYZ", core.Unknown, core.NoCategory, core.Low, "default"},
		{"private lab", "LifeLabs Inc", core.ForProfit, core.HealthcareDelivery, core.High, "healthcare"},
		{"private lab without suffix", "LifeLabs", core.Unknown, core.HealthcareDelivery, core.Medium, "healthcare"},
		{"hospital", "Sunnybrook Hospital", core.Public, core.NoCategory, core.High, "public"},
		{"university", "University Of Waterloo", core.Public, core.NoCategory, core.High, "public"},
		{"charity", "United Way Of Greater Toronto", core.NonProfit, core.NoCategory, core.Medium, "non_profit"},
		{"society", "John Howard Society", core.NonProfit, core.NoCategory, core.Medium, "non_profit"},
		{"consulting without Inc", "Deloitte LLP Consulting", core.ForProfit, core.Consulting, core.Medium, "for_profit"},
		{"IT", "Microsoft Canada Co", core.ForProfit, core.IT, core.Medium, "for_profit"},
		{"other for-profit", "Acme Paving Ltd", core.ForProfit, core.OtherService, core.High, "for_profit"},
		{"payment processor", "Davis + Henderson", core.Unknown, core.NoCategory, core.High, "special_case"},
		{"public beats non-profit", "Ontario Heritage Foundation", core.Public, core.NoCategory, core.High, "public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rule := ClassifyWithRule(tt.input)
			if c.Type != tt.wantType || c.Category != tt.wantCat || c.Confidence != tt.wantConf {
				t.Fatalf("Classify(%q) = %+v, want %s/%q/%s", tt.input, c, tt.wantType, tt.wantCat, tt.wantConf)
			}
			if rule != tt.wantRule {
				t.Fatalf("Classify(%q) decided by %q, want %q", tt.input, rule, tt.wantRule)
			}
			if c.Evidence == "" {
				t.Fatalf("Classify(%q) has no evidence", tt.input)
			}
		})
	}
}

func TestClassifyMatchesWholeWords(t *testing.T) {
	// "inc" inside a word and "lab" inside "Labrador" must not fire.
	c := Classify("Princeton Labrador Fisheries")
	if c.Type != core.Unknown || c.Confidence != core.Low {
		t.Fatalf("got %+v, want the default classification", c)
	}
	// "hr" in "Three Rivers" likewise.
	if c := Classify("Three Rivers Paving"); c.Type != core.Unknown {
		t.Fatalf("got %+v", c)
	}
}

func TestClassifyIgnoresCaseAndSpacing(t *testing.T) {
	want := Classify("Randstad Canada Inc.")
	for _, in := range []string{"RANDSTAD CANADA INC.", "  randstad   canada inc "} {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestClassifyEvidenceNamesThePattern(t *testing.T) {
	c := Classify("City of Toronto")
	if !strings.HasPrefix(c.Evidence, "Matches public institution pattern: ") || !strings.Contains(c.Evidence, "city of") {
		t.Fatalf("evidence = %q", c.Evidence)
	}
	if c := Classify("LifeLabs"); c.Evidence != EvidenceHealthcareAmbiguous {
		t.Fatalf("evidence = %q", c.Evidence)
	}
	if c := Classify("Unknown Entity XYZ"); c != core.DefaultClassification() {
		t.Fatalf("got %+v", c)
	}
}

func TestClassifyIsPure(t *testing.T) {
	names := []string{"Randstad Canada Inc.", "City of Toronto", "LifeLabs Inc", "Unknown Entity XYZ", "D+H Corporation"}
	first := make([]core.Classification, len(names))
	for i, n := range names {
		first[i] = Classify(n)
	}
	for round := 0; round < 3; round++ {
		for i := len(names) - 1; i >= 0; i-- {
			if got := Classify(names[i]); got != first[i] {
				t.Fatalf("Classify(%q) changed between calls: %+v vs %+v", names[i], got, first[i])
			}
		}
	}
}

func TestRuleOrder(t *testing.T) {
	want := []string{"public", "non_profit", "healthcare", "for_profit", "special_case"}
	if len(Rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(Rules), len(want))
	}
	for i, r := range Rules {
		if r.Name != want[i] {
			t.Fatalf("rule %d = %q, want %q", i, r.Name, want[i])
		}
	}
}

func TestEachRuleInIsolation(t *testing.T) {
	tests := []struct {
		rule  string
		hit   string
		miss  string
		wantT core.VendorType
	}{
		{"public", "Town of Oakville", "Acme Ltd", core.Public},
		{"non_profit", "Canadian Red Cross", "Acme Ltd", core.NonProfit},
		{"healthcare", "Dynacare Medical Group", "Acme Ltd", core.ForProfit},
		{"for_profit", "Acme Holdings", "City of Toronto", core.ForProfit},
		{"special_case", "Accounts Under $50,000", "Acme Ltd", core.Unknown},
	}
	byName := make(map[string]Rule, len(Rules))
	for _, r := range Rules {
		byName[r.Name] = r
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := byName[tt.rule]
			c, ok := r.Apply(tt.hit)
			if !ok || c.Type != tt.wantT {
				t.Fatalf("%s(%q) = %+v, %v", tt.rule, tt.hit, c, ok)
			}
			if _, ok := r.Apply(tt.miss); ok {
				t.Fatalf("%s(%q) should not match", tt.rule, tt.miss)
			}
		})
	}
}

func TestMemoMatchesClassify(t *testing.T) {
	m := NewMemo(8)
	for _, n := range []string{"LifeLabs Inc", "LifeLabs  Inc", "City of Toronto"} {
		if got, want := m.Classify(n), Classify(n); got != want {
			t.Fatalf("memo(%q) = %+v, want %+v", n, got, want)
		}
	}
	if s := m.Stats(); s.Hits != 1 || s.Misses != 2 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestMemoReportsRule(t *testing.T) {
	m := NewMemo(8)
	tests := []string{"LifeLabs Inc", "City of Toronto", "Zzyzx"}
	for _, n := range tests {
		_, want := ClassifyWithRule(n)
		// Second call is served from the cache.
		for i := 0; i < 2; i++ {
			_, got := m.ClassifyWithRule(n)
			if got == "" || got != want {
				t.Errorf("memo rule for %q (call %d) = %q, want %q", n, i, got, want)
			}
		}
	}
}
