// Package rules holds the keyword tables behind the quality gate, chart
// classification and emphasis. The tables are data, decoded from YAML, so
// heuristics can be extended without touching control flow.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"auto_dialogue_document/chart"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules is the complete heuristic table.
type Rules struct {
	Gate       GateRules      `yaml:"gate"`
	Emphasis   EmphasisRules  `yaml:"emphasis"`
	Categories []CategoryRule `yaml:"categories"`
}

type GateRules struct {
	Consensus   []string `yaml:"consensus"`
	Substantive []string `yaml:"substantive"`
}

type EmphasisRules struct {
	Strong []string `yaml:"strong"`
	Soft   []string `yaml:"soft"`
}

// CategoryRule maps trigger words to a chart and its canned datasets.
type CategoryRule struct {
	Name           string       `yaml:"name"`
	Chart          chart.Kind   `yaml:"chart"`
	Title          string       `yaml:"title"`
	Unit           string       `yaml:"unit"`
	Scale          *Scale       `yaml:"scale"`
	Anchor         chart.Anchor `yaml:"anchor"`
	Triggers       []string     `yaml:"triggers"`
	HeaderKeywords []string     `yaml:"header_keywords"`
	Datasets       []Dataset    `yaml:"datasets"`
}

// Scale bounds every dataset value of a category, such as 1-10 severity
// scores for risk charts.
type Scale struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Dataset is a canned allocation selected by a keyword combination: every
// AllOf word must appear and, when AnyOf is set, at least one of those.
// It stands in for real extraction from the text.
type Dataset struct {
	Name       string            `yaml:"name"`
	AllOf      []string          `yaml:"all_of"`
	AnyOf      []string          `yaml:"any_of"`
	Values     []chart.Value     `yaml:"values"`
	Milestones []chart.Milestone `yaml:"milestones"`
}

// Default returns a fresh copy of the built-in table.
func Default() Rules {
	r, err := Parse(defaultRulesYAML)
	if err != nil {
		panic("rules: embedded table is invalid: " + err.Error())
	}
	return r
}

// Load reads a table from disk.
func Load(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, err
	}
	r, err := Parse(data)
	if err != nil {
		return Rules{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func Parse(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks the table is usable: known chart kinds, unique names,
// and no dataset that would produce an empty or ambiguous chart.
func (r Rules) Validate() error {
	if len(r.Gate.Consensus) == 0 && len(r.Gate.Substantive) == 0 {
		return errors.New("rules: gate needs at least one phrase")
	}
	seen := map[string]bool{}
	for _, c := range r.Categories {
		if c.Name == "" {
			return errors.New("rules: category without name")
		}
		if seen[c.Name] {
			return fmt.Errorf("rules: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Triggers) == 0 {
			return fmt.Errorf("rules: category %q has no triggers", c.Name)
		}
		if c.Anchor == "" {
			return fmt.Errorf("rules: category %q has no anchor", c.Name)
		}
		if c.Scale != nil && c.Scale.Min >= c.Scale.Max {
			return fmt.Errorf("rules: category %q: scale min %v not below max %v", c.Name, c.Scale.Min, c.Scale.Max)
		}
		for _, d := range c.Datasets {
			if len(d.AllOf) == 0 && len(d.AnyOf) == 0 {
				return fmt.Errorf("rules: %s/%s has no keywords", c.Name, d.Name)
			}
			switch c.Chart {
			case chart.KindPie, chart.KindBar:
				if len(d.Values) == 0 {
					return fmt.Errorf("rules: %s/%s has no values", c.Name, d.Name)
				}
				if err := validateValues(c, d); err != nil {
					return err
				}
			case chart.KindTimeline:
				if len(d.Milestones) == 0 {
					return fmt.Errorf("rules: %s/%s has no milestones", c.Name, d.Name)
				}
			default:
				return fmt.Errorf("rules: category %q: %w: %q", c.Name, chart.ErrUnsupportedKind, c.Chart)
			}
		}
	}
	return nil
}

func validateValues(c CategoryRule, d Dataset) error {
	labels := make(map[string]bool, len(d.Values))
	for _, v := range d.Values {
		if labels[v.Label] {
			return fmt.Errorf("rules: %s/%s: duplicate label %q", c.Name, d.Name, v.Label)
		}
		labels[v.Label] = true
		if c.Scale != nil && (v.Value < c.Scale.Min || v.Value > c.Scale.Max) {
			return fmt.Errorf("rules: %s/%s: %q value %v outside %v-%v", c.Name, d.Name, v.Label, v.Value, c.Scale.Min, c.Scale.Max)
		}
	}
	return nil
}
