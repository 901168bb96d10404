package formatter

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"auto_dialogue_document/chart"
)

const maxHeaderLen = 80

var (
	sectionSplit = regexp.MustCompile(`\n[ \t]*\n`)
	listItem     = regexp.MustCompile(`^(?:([-*•])|(\d+)[.)])\s+(.*)$`)
)

type lineKind int

const (
	lineHeader lineKind = iota
	lineList
	lineNote
	lineText
)

// classifyLine applies the rules in priority order: header, list item,
// note, plain text.
func classifyLine(line string) lineKind {
	switch {
	case isHeader(line):
		return lineHeader
	case listItem.MatchString(line):
		return lineList
	case isNote(line):
		return lineNote
	default:
		return lineText
	}
}

func isHeader(line string) bool {
	if strings.HasPrefix(line, "#") {
		return strings.TrimSpace(strings.TrimLeft(line, "#")) != ""
	}
	if utf8.RuneCountInString(line) > maxHeaderLen {
		return false
	}
	if strings.HasSuffix(line, ":") && len(line) > 1 {
		return true
	}
	return isAllCaps(line)
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

func isNote(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "important") ||
		strings.Contains(lower, "critical") ||
		strings.Contains(lower, "note:")
}

func headerText(line string) (string, int) {
	level := 2
	if strings.HasPrefix(line, "#") {
		hashes := len(line) - len(strings.TrimLeft(line, "#"))
		if hashes > level {
			level = min(hashes, 4)
		}
		line = strings.TrimLeft(line, "#")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":")), level
}

// blockState is the kind of block currently open in the output.
type blockState int

const (
	stateNone blockState = iota
	stateList
	stateParagraph
)

type placement struct {
	chart    chart.Rendered
	inserted bool
}

// bodyWriter converts body text to markup. Every open list or paragraph is
// closed before anything else is written.
type bodyWriter struct {
	f         *Formatter
	b         strings.Builder
	state     blockState
	listTag   string
	paragraph []string
	charts    []*placement
	inserted  int
	appended  int
	blocks    int
}

func newBodyWriter(f *Formatter, charts []chart.Rendered) *bodyWriter {
	w := &bodyWriter{f: f}
	for _, c := range charts {
		w.charts = append(w.charts, &placement{chart: c})
	}
	return w
}

func (w *bodyWriter) write(body string) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	for _, section := range sectionSplit.Split(body, -1) {
		for _, raw := range strings.Split(section, "\n") {
			w.line(strings.TrimSpace(raw))
		}
		w.closeBlock()
	}
	w.appendRemaining()
	if w.blocks == 0 {
		w.b.WriteString("<p></p>\n")
	}
}

func (w *bodyWriter) line(line string) {
	if line == "" {
		return
	}
	switch classifyLine(line) {
	case lineHeader:
		w.closeBlock()
		text, level := headerText(line)
		fmt.Fprintf(&w.b, "<h%d>%s</h%d>\n", level, html.EscapeString(text), level)
		w.blocks++
		w.insertFor(text)
	case lineList:
		m := listItem.FindStringSubmatch(line)
		tag := "ul"
		if m[2] != "" {
			tag = "ol"
		}
		if w.state != stateList || w.listTag != tag {
			w.closeBlock()
			fmt.Fprintf(&w.b, "<%s>\n", tag)
			w.state = stateList
			w.listTag = tag
			w.blocks++
		}
		fmt.Fprintf(&w.b, "<li>%s</li>\n", html.EscapeString(m[3]))
	case lineNote:
		w.closeBlock()
		fmt.Fprintf(&w.b, "<div class=\"note\">%s</div>\n", html.EscapeString(line))
		w.blocks++
	default:
		if w.state != stateParagraph {
			w.closeBlock()
			w.state = stateParagraph
		}
		w.paragraph = append(w.paragraph, line)
	}
}

func (w *bodyWriter) closeBlock() {
	switch w.state {
	case stateList:
		fmt.Fprintf(&w.b, "</%s>\n", w.listTag)
	case stateParagraph:
		text := html.EscapeString(strings.Join(w.paragraph, " "))
		fmt.Fprintf(&w.b, "<p>%s</p>\n", w.f.emphasize(text))
		w.blocks++
	}
	w.state = stateNone
	w.listTag = ""
	w.paragraph = w.paragraph[:0]
}

// insertFor places every pending chart whose anchor matches the header.
// A chart is placed at most once.
func (w *bodyWriter) insertFor(header string) {
	for _, p := range w.charts {
		if p.inserted || !w.f.matcher.MatchesAnchor(header, p.chart.Spec.Anchor) {
			continue
		}
		w.figure(p.chart)
		p.inserted = true
		w.inserted++
	}
}

func (w *bodyWriter) appendRemaining() {
	opened := false
	for _, p := range w.charts {
		if p.inserted {
			continue
		}
		if !opened {
			w.b.WriteString("<section class=\"chart-appendix\">\n<h2>Supporting Charts</h2>\n")
			opened = true
		}
		w.figure(p.chart)
		p.inserted = true
		w.appended++
	}
	if opened {
		w.b.WriteString("</section>\n")
		w.blocks++
	}
}

func (w *bodyWriter) figure(c chart.Rendered) {
	title := html.EscapeString(c.Spec.Title)
	fmt.Fprintf(&w.b,
		"<figure class=\"chart\" data-anchor=\"%s\"><img src=\"%s\" alt=\"%s\" width=\"%d\" height=\"%d\"><figcaption>%s</figcaption></figure>\n",
		html.EscapeString(string(c.Spec.Anchor)), c.DataURI(), title, c.Width, c.Height, title)
}

func (w *bodyWriter) String() string {
	return w.b.String()
}
