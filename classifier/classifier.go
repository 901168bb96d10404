// Package classifier detects which charts a document implies and picks a
// dataset for each from the rule table.
package classifier

import (
	"fmt"

	"auto_dialogue_document/chart"
	"auto_dialogue_document/rules"
)

// Category is a compiled rule table entry.
type Category struct {
	rule     rules.CategoryRule
	triggers *rules.KeywordSet
	headers  *rules.KeywordSet
	datasets []dataset
}

type dataset struct {
	rule  rules.Dataset
	allOf *rules.KeywordSet
	anyOf *rules.KeywordSet
}

func (c *Category) Name() string { return c.rule.Name }
func (c *Category) Rule() rules.CategoryRule { return c.rule }
func (c *Category) Anchor() chart.Anchor { return c.rule.Anchor }
func (c *Category) Triggered(text string) bool { return c.triggers.Any(text) }

// MatchDataset returns the first dataset whose keyword combination fires.
func (c *Category) MatchDataset(text string) (rules.Dataset, bool) {
	for _, d := range c.datasets {
		if !d.allOf.All(text) {
			continue
		}
		if d.anyOf.Len() > 0 && !d.anyOf.Any(text) {
			continue
		}
		return d.rule, true
	}
	return rules.Dataset{}, false
}

// Extractor turns a detected category into chart data. A future
// implementation could pull real figures out of the text.
type Extractor interface {
	Extract(cat *Category, text string) (chart.Spec, bool)
}

// CannedExtractor looks the data up in the rule table; it does not parse
// numbers out of the text.
type CannedExtractor struct{}

func (CannedExtractor) Extract(cat *Category, text string) (chart.Spec, bool) {
	d, ok := cat.MatchDataset(text)
	if !ok {
		return chart.Spec{}, false
	}
	r := cat.Rule()
	spec := chart.Spec{
		Kind:   r.Chart,
		Title:  r.Title,
		Unit:   r.Unit,
		Anchor: r.Anchor,
	}
	switch r.Chart {
	case chart.KindTimeline:
		spec.Milestones = append([]chart.Milestone(nil), d.Milestones...)
	default:
		spec.Values = append([]chart.Value(nil), d.Values...)
	}
	if spec.Validate() != nil {
		return chart.Spec{}, false
	}
	return spec, true
}

// Classifier evaluates every category independently over the same text.
type Classifier struct {
	categories []*Category
	extractor  Extractor
}

type Option func(*Classifier)

// WithExtractor replaces the canned table lookup.
func WithExtractor(e Extractor) Option {
	return func(c *Classifier) {
		if e != nil {
			c.extractor = e
		}
	}
}

func New(r rules.Rules, opts ...Option) (*Classifier, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{extractor: CannedExtractor{}}
	for _, cr := range r.Categories {
		cat, err := compile(cr)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cr.Name, err)
		}
		c.categories = append(c.categories, cat)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func compile(cr rules.CategoryRule) (*Category, error) {
	triggers, err := rules.NewKeywordSet(cr.Triggers)
	if err != nil {
		return nil, err
	}
	headers, err := rules.NewHeaderKeywordSet(cr.HeaderKeywords)
	if err != nil {
		return nil, err
	}
	cat := &Category{rule: cr, triggers: triggers, headers: headers}
	for _, d := range cr.Datasets {
		allOf, err := rules.NewKeywordSet(d.AllOf)
		if err != nil {
			return nil, err
		}
		anyOf, err := rules.NewKeywordSet(d.AnyOf)
		if err != nil {
			return nil, err
		}
		cat.datasets = append(cat.datasets, dataset{rule: d, allOf: allOf, anyOf: anyOf})
	}
	return cat, nil
}

// Categories returns the compiled categories in table order.
func (c *Classifier) Categories() []*Category {
	return c.categories
}

// Detect returns the names of all categories triggered by body or context.
func (c *Classifier) Detect(body, context string) []string {
	text := body + "\n" + context
	var out []string
	for _, cat := range c.categories {
		if cat.Triggered(text) {
			out = append(out, cat.Name())
		}
	}
	return out
}

// Classify returns one spec per triggered category with a matching dataset.
// Categories without a match produce nothing.
func (c *Classifier) Classify(body, context string) []chart.Spec {
	text := body + "\n" + context
	var out []chart.Spec
	for _, cat := range c.categories {
		if !cat.Triggered(text) {
			continue
		}
		if spec, ok := c.extractor.Extract(cat, text); ok {
			out = append(out, spec)
		}
	}
	return out
}

// MatchesAnchor reports whether a section header belongs to the category
// that owns anchor.
func (c *Classifier) MatchesAnchor(header string, anchor chart.Anchor) bool {
	for _, cat := range c.categories {
		if cat.Anchor() == anchor && cat.headers.Any(header) {
			return true
		}
	}
	return false
}
