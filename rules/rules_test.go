package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auto_dialogue_document/chart"
)

func TestDefaultTableIsValid(t *testing.T) {
	r := Default()
	if len(r.Categories) != 3 {
		t.Fatalf("got %d categories, want 3", len(r.Categories))
	}
	want := map[string]chart.Kind{"budget": chart.KindPie, "timeline": chart.KindTimeline, "risk": chart.KindBar}
	for _, c := range r.Categories {
		if want[c.Name] != c.Chart {
			t.Errorf("category %s: chart %q", c.Name, c.Chart)
		}
		if c.Name == "risk" && (c.Scale == nil || c.Scale.Min != 1 || c.Scale.Max != 10) {
			t.Errorf("risk scale %+v, want 1-10", c.Scale)
		}
		for _, d := range c.Datasets {
			for _, v := range d.Values {
				if c.Name == "risk" && (v.Value < 1 || v.Value > 10) {
					t.Errorf("risk/%s: severity %v out of 1-10", d.Name, v.Value)
				}
			}
		}
	}
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Gate.Consensus[0] = "mutated"
	if Default().Gate.Consensus[0] == "mutated" {
		t.Error("Default shares state between calls")
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no gate", "categories: []", "gate needs"},
		{"duplicate", `
gate: {consensus: [x]}
categories:
  - {name: a, chart: pie, anchor: after_a_section, triggers: [a]}
  - {name: a, chart: pie, anchor: after_a_section, triggers: [a]}
`, "duplicate"},
		{"empty dataset", `
gate: {consensus: [x]}
categories:
  - name: a
    chart: pie
    anchor: after_a_section
    triggers: [a]
    datasets: [{name: d, any_of: [a]}]
`, "no values"},
		{"severity out of scale", `
gate: {consensus: [x]}
categories:
  - name: risk
    chart: bar
    anchor: after_risk_section
    scale: {min: 1, max: 10}
    triggers: [risk]
    datasets: [{name: d, any_of: [risk], values: [{label: Security, value: 12}]}]
`, "outside 1-10"},
		{"duplicate label", `
gate: {consensus: [x]}
categories:
  - name: risk
    chart: bar
    anchor: after_risk_section
    triggers: [risk]
    datasets: [{name: d, any_of: [risk], values: [{label: Security, value: 5}, {label: Security, value: 6}]}]
`, "duplicate label"},
		{"inverted scale", `
gate: {consensus: [x]}
categories:
  - {name: a, chart: bar, anchor: after_a_section, scale: {min: 10, max: 1}, triggers: [a]}
`, "not below max"},
		{"unknown chart", `
gate: {consensus: [x]}
categories:
  - name: a
    chart: radar
    anchor: after_a_section
    triggers: [a]
    datasets: [{name: d, any_of: [a], values: [{label: x, value: 1}]}]
`, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestUnknownChartWrapsSentinel(t *testing.T) {
	_, err := Parse([]byte(`
gate: {consensus: [x]}
categories:
  - name: a
    chart: radar
    anchor: after_a_section
    triggers: [a]
    datasets: [{name: d, any_of: [a], values: [{label: x, value: 1}]}]
`))
	if !errors.Is(err, chart.ErrUnsupportedKind) {
		t.Errorf("got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, defaultRulesYAML, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Categories) != 3 {
		t.Errorf("got %d categories", len(r.Categories))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKeywordSet(t *testing.T) {
	ks, err := NewKeywordSet([]string{"Risk", "milestone"})
	if err != nil {
		t.Fatal(err)
	}
	text := "Two MILESTONES and an asterisk"
	if got := ks.Matches(text); len(got) != 1 || got[0] != "milestone" {
		t.Errorf("Matches = %v", got)
	}
	if !ks.Any(text) {
		t.Error("Any should be true")
	}
	if ks.All(text) {
		t.Error("All should be false: risk only appears inside asterisk")
	}
	if !ks.All("risk at the milestone") {
		t.Error("All should be true")
	}

	empty, _ := NewKeywordSet(nil)
	if !empty.All("anything") || empty.Any("anything") {
		t.Error("empty set: All is vacuous, Any is false")
	}
	if _, err := NewKeywordSet([]string{" "}); err == nil {
		t.Error("blank keyword should fail")
	}
}

func TestHeaderKeywordSet(t *testing.T) {
	ks, err := NewHeaderKeywordSet([]string{"cost", "risk"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		header string
		want   bool
	}{
		{"Cost Breakdown:", true},
		{"COSTS", true},
		{"Key Risks:", true},
		{"Costa Rica Expansion:", false},
		{"Riskless Options", false},
	}
	for _, tt := range tests {
		if got := ks.Any(tt.header); got != tt.want {
			t.Errorf("Any(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
