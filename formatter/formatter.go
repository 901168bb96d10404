// Package formatter assembles a draft and its charts into a single
// self-contained HTML document.
package formatter

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"auto_dialogue_document/chart"
	"auto_dialogue_document/rules"
)

const (
	DefaultStatus = "Draft for Review"
	DefaultFooter = "This document was generated automatically from a recorded discussion. " +
		"Charts are illustrative estimates derived from the conversation and must be verified before use."

	dateLayout = "January 2, 2006"
)

// Draft is the loosely structured content handed over by the generator.
type Draft struct {
	Title    string           `json:"title"`
	Authors  []string         `json:"authors"`
	Category string           `json:"category"`
	Body     string           `json:"body"`
	Charts   []chart.Rendered `json:"-"`
}

// Document is the finished artifact. The caller owns persistence.
type Document struct {
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	GeneratedAt time.Time `json:"generated_at"`
	// Inserted counts charts placed after a matching header,
	// Appended those placed at the end.
	Inserted int `json:"inserted"`
	Appended int `json:"appended"`
}

// AnchorMatcher decides whether a section header is the home of an anchor.
type AnchorMatcher interface {
	MatchesAnchor(header string, anchor chart.Anchor) bool
}

type keywordMatcher map[chart.Anchor]*rules.KeywordSet

func (m keywordMatcher) MatchesAnchor(header string, anchor chart.Anchor) bool {
	ks, ok := m[anchor]
	return ok && ks.Any(header)
}

// NewAnchorMatcher builds a matcher from the header keywords of a rule table.
func NewAnchorMatcher(r rules.Rules) (AnchorMatcher, error) {
	m := keywordMatcher{}
	for _, c := range r.Categories {
		ks, err := rules.NewHeaderKeywordSet(c.HeaderKeywords)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.Name, err)
		}
		m[c.Anchor] = ks
	}
	return m, nil
}

type Formatter struct {
	now     func() time.Time
	matcher AnchorMatcher
	strong  *regexp.Regexp
	soft    *regexp.Regexp
	status  string
	footer  string
}

type Option func(*Formatter)

func WithClock(now func() time.Time) Option {
	return func(f *Formatter) {
		if now != nil {
			f.now = now
		}
	}
}

func WithAnchorMatcher(m AnchorMatcher) Option {
	return func(f *Formatter) {
		if m != nil {
			f.matcher = m
		}
	}
}

// WithEmphasis sets the strong and soft emphasis vocabularies.
func WithEmphasis(strong, soft []string) Option {
	return func(f *Formatter) {
		f.strong = wordPattern(strong)
		f.soft = wordPattern(soft)
	}
}

func WithStatus(status string) Option {
	return func(f *Formatter) { f.status = status }
}

func WithFooter(footer string) Option {
	return func(f *Formatter) { f.footer = footer }
}

func New(opts ...Option) *Formatter {
	r := rules.Default()
	matcher, err := NewAnchorMatcher(r)
	if err != nil {
		panic("formatter: default header keywords: " + err.Error())
	}
	f := &Formatter{
		now:     time.Now,
		matcher: matcher,
		strong:  wordPattern(r.Emphasis.Strong),
		soft:    wordPattern(r.Emphasis.Soft),
		status:  DefaultStatus,
		footer:  DefaultFooter,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders the draft. Charts passed here are placed after those
// already attached to the draft. It never fails; missing content degrades
// to emptier output.
func (f *Formatter) Format(d Draft, charts []chart.Rendered) Document {
	now := f.now()
	all := make([]chart.Rendered, 0, len(d.Charts)+len(charts))
	all = append(all, d.Charts...)
	all = append(all, charts...)

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "Untitled Document"
	}
	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = "general"
	}
	authors := uniqueAuthors(d.Authors)
	authorLine := "Unknown"
	if len(authors) > 0 {
		authorLine = strings.Join(authors, ", ")
	}

	body := newBodyWriter(f, all)
	body.write(d.Body)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>\n")
	b.WriteString(stylesheet)
	b.WriteString("</style>\n</head>\n<body>\n<article class=\"document\">\n")

	b.WriteString("<header class=\"doc-header\">\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<p class=\"subtitle\">%s</p>\n", html.EscapeString(cases.Title(language.English).String(category)))
	b.WriteString("</header>\n")

	b.WriteString("<table class=\"doc-meta\">\n")
	metaRow(&b, "Authors", authorLine)
	metaRow(&b, "Generated", now.Format(dateLayout))
	metaRow(&b, "Category", category)
	metaRow(&b, "Status", f.status)
	b.WriteString("</table>\n")

	b.WriteString("<main class=\"doc-body\">\n")
	b.WriteString(body.String())
	b.WriteString("</main>\n")

	fmt.Fprintf(&b, "<footer class=\"doc-footer\"><p>%s</p></footer>\n", html.EscapeString(f.footer))
	b.WriteString("</article>\n</body>\n</html>\n")

	return Document{
		Title:       title,
		HTML:        b.String(),
		GeneratedAt: now,
		Inserted:    body.inserted,
		Appended:    body.appended,
	}
}

func metaRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>\n", label, html.EscapeString(value))
}

func uniqueAuthors(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// emphasize wraps vocabulary words in already-escaped text.
func (f *Formatter) emphasize(escaped string) string {
	if f.strong != nil {
		escaped = f.strong.ReplaceAllString(escaped, "<strong>${1}</strong>")
	}
	if f.soft != nil {
		escaped = f.soft.ReplaceAllString(escaped, "<em>${1}</em>")
	}
	return escaped
}

// wordPattern matches any of words as a whole word, ignoring case. Longer
// words are tried first so multi-word entries win over their prefixes.
// Words are HTML-escaped like the paragraph text they are matched against,
// so "R&D" finds "R&amp;D".
func wordPattern(words []string) *regexp.Regexp {
	var escaped []string
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			escaped = append(escaped, html.EscapeString(w))
		}
	}
	if len(escaped) == 0 {
		return nil
	}
	sort.SliceStable(escaped, func(i, j int) bool { return len(escaped[i]) > len(escaped[j]) })
	alts := make([]string, len(escaped))
	for i, w := range escaped {
		alts[i] = wordBounded(w)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(alts, "|") + `)`)
}

// wordBounded quotes w and adds \b on each edge that is a word character;
// an edge like the ";" of "&#39;" has no boundary to assert.
func wordBounded(w string) string {
	q := regexp.QuoteMeta(w)
	if isWordByte(w[0]) {
		q = `\b` + q
	}
	if isWordByte(w[len(w)-1]) {
		q += `\b`
	}
	return q
}

func isWordByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}
