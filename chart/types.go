package chart

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind enumerates the chart shapes the renderer knows how to draw.
type Kind string

const (
	KindPie      Kind = "pie"
	KindBar      Kind = "bar"
	KindTimeline Kind = "timeline"
)

// Anchor names the document section a chart belongs after.
type Anchor string

const (
	AnchorBudget   Anchor = "after_budget_section"
	AnchorTimeline Anchor = "after_timeline_section"
	AnchorRisk     Anchor = "after_risk_section"
)

var (
	ErrUnsupportedKind = errors.New("chart: unsupported kind")
	ErrEmptyData       = errors.New("chart: no data")
	ErrInvalidValue    = errors.New("chart: invalid value")
	ErrInvalidSize     = errors.New("chart: invalid figure size")
)

// Value is one labelled number of a pie or bar chart.
type Value struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// Milestone is one ordered step of a timeline chart.
type Milestone struct {
	Date  string `json:"date" yaml:"date"`
	Label string `json:"label" yaml:"label"`
}

// Spec describes a chart before rasterization.
type Spec struct {
	Kind       Kind        `json:"kind"`
	Title      string      `json:"title"`
	Unit       string      `json:"unit,omitempty"`
	Values     []Value     `json:"values,omitempty"`
	Milestones []Milestone `json:"milestones,omitempty"`
	Anchor     Anchor      `json:"anchor"`
}

// Validate reports whether the spec can be rendered.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindPie, KindBar:
		if len(s.Values) == 0 {
			return fmt.Errorf("%w: %s chart %q has no values", ErrEmptyData, s.Kind, s.Title)
		}
		var total float64
		for _, v := range s.Values {
			if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) || v.Value < 0 {
				return fmt.Errorf("%w: %q=%v", ErrInvalidValue, v.Label, v.Value)
			}
			total += v.Value
		}
		if s.Kind == KindPie && total <= 0 {
			return fmt.Errorf("%w: pie chart %q sums to zero", ErrInvalidValue, s.Title)
		}
	case KindTimeline:
		if len(s.Milestones) == 0 {
			return fmt.Errorf("%w: timeline %q has no milestones", ErrEmptyData, s.Title)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, s.Kind)
	}
	return nil
}

// Category returns the short section name the anchor points at, e.g. "budget".
func (a Anchor) Category() string {
	name := strings.TrimPrefix(string(a), "after_")
	return strings.TrimSuffix(name, "_section")
}

// Rendered is an encoded chart image tied to the spec it came from.
type Rendered struct {
	Spec   Spec
	PNG    []byte
	Width  int
	Height int
}

// DataURI returns the image as an inline data URI.
func (r Rendered) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.PNG)
}
