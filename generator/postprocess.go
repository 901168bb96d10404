package generator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
)

var categoryLine = regexp.MustCompile(`(?i)^category\s*:\s*(.+)$`)

// Parsed is a model reply reduced to the formatter's line grammar.
type Parsed struct {
	Title    string
	Category string
	Body     string
}

// ParseMarkdown walks the Markdown AST and rewrites it as plain lines:
// headings keep their # prefix, list items become "- x" or "N. x",
// inline markup is dropped. The first level-one heading is the title and
// a "Category: x" paragraph sets the category.
func ParseMarkdown(md string) (Parsed, error) {
	src := []byte(strings.TrimSpace(md))
	if len(src) == 0 {
		return Parsed{}, errors.New("model returned empty markdown")
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	n := &normalizer{src: src}
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		n.block(c)
	}
	return Parsed{
		Title:    n.title,
		Category: n.category,
		Body:     strings.Join(n.blocks, "\n\n"),
	}, nil
}

// PostProcess turns a model reply into a draft attributed to the speakers
// of the conversation.
func PostProcess(raw string, s gate.Snapshot) (formatter.Draft, error) {
	p, err := ParseMarkdown(raw)
	if err != nil {
		return formatter.Draft{}, err
	}
	if p.Category == "" {
		p.Category = "general"
	}
	return formatter.Draft{
		Title:    p.Title,
		Authors:  s.Speakers(),
		Category: p.Category,
		Body:     p.Body,
	}, nil
}

type normalizer struct {
	src      []byte
	title    string
	category string
	blocks   []string
}

func (n *normalizer) block(node ast.Node) {
	switch v := node.(type) {
	case *ast.Heading:
		t := oneLine(inlineText(v, n.src))
		if t == "" {
			return
		}
		if v.Level == 1 && n.title == "" {
			n.title = t
			return
		}
		n.emit(strings.Repeat("#", v.Level) + " " + t)
	case *ast.Paragraph, *ast.TextBlock:
		t := inlineText(v, n.src)
		if m := categoryLine.FindStringSubmatch(t); m != nil && n.category == "" && !strings.Contains(t, "\n") {
			n.category = strings.ToLower(strings.TrimSpace(m[1]))
			return
		}
		n.emit(t)
	case *ast.List:
		var lines []string
		n.list(v, 0, &lines)
		n.emit(strings.Join(lines, "\n"))
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		n.emit(rawLines(v, n.src))
	case *ast.ThematicBreak, *ast.HTMLBlock:
	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			n.block(c)
		}
	}
}

func (n *normalizer) list(l *ast.List, depth int, lines *[]string) {
	num := l.Start
	if num == 0 {
		num = 1
	}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var nested []*ast.List
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if t := oneLine(inlineText(c, n.src)); t != "" {
				parts = append(parts, t)
			}
		}
		marker := "-"
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d.", num)
			num++
		}
		*lines = append(*lines, strings.Repeat("  ", depth)+marker+" "+strings.Join(parts, " "))
		for _, sub := range nested {
			n.list(sub, depth+1, lines)
		}
	}
}

func (n *normalizer) emit(block string) {
	if block = strings.TrimSpace(block); block != "" {
		n.blocks = append(n.blocks, block)
	}
}

// inlineText collects the visible text under node. Soft and hard line
// breaks become newlines.
func inlineText(node ast.Node, src []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(parent ast.Node) {
		for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte('\n')
				}
			case *ast.String:
				b.Write(t.Value)
			case *ast.AutoLink:
				b.Write(t.URL(src))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(node)
	return strings.TrimSpace(b.String())
}

func rawLines(node ast.Node, src []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
