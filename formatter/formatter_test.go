package formatter

import (
	"strings"
	"testing"
	"time"

	"auto_dialogue_document/chart"
)

var fixedNow = time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)

func newTestFormatter() *Formatter {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func fakeChart(title string, anchor chart.Anchor) chart.Rendered {
	return chart.Rendered{
		Spec:   chart.Spec{Kind: chart.KindPie, Title: title, Anchor: anchor},
		PNG:    []byte(title),
		Width:  1000,
		Height: 600,
	}
}

func mainOf(t *testing.T, doc Document) string {
	t.Helper()
	start := strings.Index(doc.HTML, "<main class=\"doc-body\">")
	end := strings.Index(doc.HTML, "</main>")
	if start < 0 || end < start {
		t.Fatalf("no body in output:\n%s", doc.HTML)
	}
	return doc.HTML[start:end]
}

func TestChartInsertedAfterMatchingHeader(t *testing.T) {
	draft := Draft{
		Title:    "Budget Plan",
		Category: "budget",
		Body:     "Introduction:\nWe met to plan.\n\nBudget Overview:\nThe allocation covers staffing.",
	}
	doc := newTestFormatter().Format(draft, []chart.Rendered{fakeChart("Budget Allocation", chart.AnchorBudget)})

	if n := strings.Count(doc.HTML, "<img"); n != 1 {
		t.Fatalf("got %d images, want 1", n)
	}
	body := mainOf(t, doc)
	header := strings.Index(body, "<h2>Budget Overview</h2>")
	fig := strings.Index(body, "<figure")
	para := strings.Index(body, "<p>The <strong>allocation</strong> covers staffing.</p>")
	if header < 0 || fig < 0 || para < 0 {
		t.Fatalf("missing pieces in body:\n%s", body)
	}
	if !(header < fig && fig < para) {
		t.Errorf("chart not placed directly after its header:\n%s", body)
	}
	if doc.Inserted != 1 || doc.Appended != 0 {
		t.Errorf("inserted=%d appended=%d", doc.Inserted, doc.Appended)
	}
}

func TestChartInsertedExactlyOnce(t *testing.T) {
	draft := Draft{Body: "Budget:\nFirst pass.\n\nRevised Budget:\nSecond pass.\n\nCOST SUMMARY\nThird."}
	doc := newTestFormatter().Format(draft, []chart.Rendered{fakeChart("Budget Allocation", chart.AnchorBudget)})
	if n := strings.Count(doc.HTML, "<img"); n != 1 {
		t.Fatalf("got %d images, want 1", n)
	}
	body := mainOf(t, doc)
	if strings.Index(body, "<figure") > strings.Index(body, "Revised Budget") {
		t.Error("chart should follow the first matching header")
	}
}

func TestHeaderKeywordsMatchWholeWords(t *testing.T) {
	draft := Draft{Body: "Costa Rica Expansion:\nWe open an office.\n\nBudget:\nThe split is final."}
	doc := newTestFormatter().Format(draft, []chart.Rendered{fakeChart("Budget Allocation", chart.AnchorBudget)})
	body := mainOf(t, doc)
	fig := strings.Index(body, "<figure")
	budget := strings.Index(body, "<h2>Budget</h2>")
	if budget < 0 || fig < budget {
		t.Errorf("chart at %d, budget header at %d:\n%s", fig, budget, body)
	}
	if doc.Inserted != 1 {
		t.Errorf("inserted=%d", doc.Inserted)
	}
}

func TestUnmatchedChartsAppendedInOrder(t *testing.T) {
	draft := Draft{Body: "Overview:\nNothing specific.\n\nBudget:\nSome numbers."}
	charts := []chart.Rendered{
		fakeChart("Risk Assessment", chart.AnchorRisk),
		fakeChart("Budget Allocation", chart.AnchorBudget),
		fakeChart("Project Timeline", chart.AnchorTimeline),
	}
	doc := newTestFormatter().Format(draft, charts)
	if n := strings.Count(doc.HTML, "<img"); n != 3 {
		t.Fatalf("got %d images, want 3", n)
	}
	if doc.Inserted != 1 || doc.Appended != 2 {
		t.Errorf("inserted=%d appended=%d", doc.Inserted, doc.Appended)
	}
	body := mainOf(t, doc)
	appendix := strings.Index(body, "chart-appendix")
	risk := strings.Index(body, `alt="Risk Assessment"`)
	timeline := strings.Index(body, `alt="Project Timeline"`)
	last := strings.Index(body, "Some numbers.")
	if appendix < last || risk < appendix || timeline < risk {
		t.Errorf("appendix order wrong:\n%s", body)
	}
}

func TestDraftChartsComeFirst(t *testing.T) {
	draft := Draft{Body: "text", Charts: []chart.Rendered{fakeChart("First", chart.AnchorRisk)}}
	doc := newTestFormatter().Format(draft, []chart.Rendered{fakeChart("Second", chart.AnchorRisk)})
	if strings.Index(doc.HTML, `alt="First"`) > strings.Index(doc.HTML, `alt="Second"`) {
		t.Error("draft charts should precede extra charts")
	}
}

func TestListGrouping(t *testing.T) {
	draft := Draft{Body: "- alpha\n* beta\nplain line\n1. one\n2) two\n• gamma"}
	body := mainOf(t, newTestFormatter().Format(draft, nil))
	want := "<ul>\n<li>alpha</li>\n<li>beta</li>\n</ul>\n<p>plain line</p>\n<ol>\n<li>one</li>\n<li>two</li>\n</ol>\n<ul>\n<li>gamma</li>\n</ul>\n"
	if !strings.Contains(body, want) {
		t.Errorf("got:\n%s\nwant:\n%s", body, want)
	}
}

func TestListClosedAtSectionEnd(t *testing.T) {
	draft := Draft{Body: "- a\n- b\n\n- c"}
	body := mainOf(t, newTestFormatter().Format(draft, nil))
	if strings.Count(body, "<ul>") != 2 || strings.Count(body, "</ul>") != 2 {
		t.Errorf("each section should hold its own list:\n%s", body)
	}
}

func TestLineClassification(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"Overview:", lineHeader},
		{"EXECUTIVE SUMMARY", lineHeader},
		{"## Next Steps", lineHeader},
		{"- item", lineList},
		{"12. item", lineList},
		{"Important: read this first", lineNote},
		{"This is critical for launch", lineNote},
		{"note: minor", lineNote},
		{"Just a sentence.", lineText},
		{"A", lineText},
		{strings.Repeat("long ", 20) + "line:", lineText},
		{"-not a list", lineText},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHeaderLevels(t *testing.T) {
	draft := Draft{Body: "# Top\n### Detail\n#### Deeper\n###### Deepest\nPLAN"}
	body := mainOf(t, newTestFormatter().Format(draft, nil))
	for _, want := range []string{"<h2>Top</h2>", "<h3>Detail</h3>", "<h4>Deeper</h4>", "<h4>Deepest</h4>", "<h2>PLAN</h2>"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in:\n%s", want, body)
		}
	}
}

func TestNotesAndParagraphs(t *testing.T) {
	draft := Draft{Body: "First line\nsecond line\nImportant: approve by Friday\nafter note"}
	body := mainOf(t, newTestFormatter().Format(draft, nil))
	want := "<p>First line second line</p>\n<div class=\"note\">Important: approve by Friday</div>\n<p>after note</p>\n"
	if !strings.Contains(body, want) {
		t.Errorf("got:\n%s", body)
	}
}

func TestEmphasis(t *testing.T) {
	draft := Draft{Body: "We MUST review the Budget and ROI; budgetary items should wait."}
	body := mainOf(t, newTestFormatter().Format(draft, nil))
	want := "<p>We <em>MUST</em> review the <strong>Budget</strong> and <strong>ROI</strong>; budgetary items <em>should</em> wait.</p>"
	if !strings.Contains(body, want) {
		t.Errorf("got:\n%s", body)
	}
}

func TestCustomEmphasis(t *testing.T) {
	f := New(WithClock(func() time.Time { return fixedNow }), WithEmphasis([]string{"north star"}, nil))
	body := mainOf(t, f.Format(Draft{Body: "Our North Star metric, budget aside."}, nil))
	if !strings.Contains(body, "<strong>North Star</strong>") || strings.Contains(body, "<strong>budget</strong>") {
		t.Errorf("got:\n%s", body)
	}
}

func TestEmphasisWithMarkupCharacters(t *testing.T) {
	f := New(WithClock(func() time.Time { return fixedNow }), WithEmphasis([]string{"R&D", "Q&A's"}, []string{"<beta>"}))
	body := mainOf(t, f.Format(Draft{Body: "R&D leads the Q&A's agenda for the <beta> cohort."}, nil))
	for _, want := range []string{
		"<strong>R&amp;D</strong>",
		"<strong>Q&amp;A&#39;s</strong>",
		"<em>&lt;beta&gt;</em>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in:\n%s", want, body)
		}
	}
}

func TestEscapesContent(t *testing.T) {
	draft := Draft{
		Title:   "<script>alert(1)</script>",
		Authors: []string{"Eve <eve@example.com>"},
		Body:    "Risks & Issues:\n<script>x()</script> and a <b>tag</b>",
	}
	doc := newTestFormatter().Format(draft, nil)
	if strings.Contains(doc.HTML, "<script") {
		t.Errorf("unescaped script tag:\n%s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<h2>Risks &amp; Issues</h2>") {
		t.Error("header not escaped")
	}
	if !strings.Contains(doc.HTML, "Eve &lt;eve@example.com&gt;") {
		t.Error("author not escaped")
	}
}

func TestShellAndMetadata(t *testing.T) {
	draft := Draft{
		Title:    "Launch Protocol",
		Authors:  []string{"Carol", "Alice", "Carol", " ", "Bob"},
		Category: "launch protocol",
		Body:     "Steps:\n- prepare",
	}
	doc := newTestFormatter().Format(draft, nil)
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<style>",
		"<h1>Launch Protocol</h1>",
		`<p class="subtitle">Launch Protocol</p>`,
		"<tr><th>Authors</th><td>Carol, Alice, Bob</td></tr>",
		"<tr><th>Generated</th><td>March 4, 2025</td></tr>",
		"<tr><th>Category</th><td>launch protocol</td></tr>",
		"<tr><th>Status</th><td>Draft for Review</td></tr>",
		`<footer class="doc-footer">`,
	} {
		if !strings.Contains(doc.HTML, want) {
			t.Errorf("missing %q", want)
		}
	}
	for _, banned := range []string{"<script", "<link", "src=\"http"} {
		if strings.Contains(doc.HTML, banned) {
			t.Errorf("document is not self-contained: found %q", banned)
		}
	}
	if !doc.GeneratedAt.Equal(fixedNow) || doc.Title != "Launch Protocol" {
		t.Errorf("document fields: %+v", doc.GeneratedAt)
	}
}

func TestEmptyDraftDegrades(t *testing.T) {
	doc := newTestFormatter().Format(Draft{}, nil)
	body := mainOf(t, doc)
	if !strings.Contains(body, "<p></p>") {
		t.Errorf("empty body should render an empty paragraph:\n%s", body)
	}
	if !strings.Contains(doc.HTML, "<h1>Untitled Document</h1>") {
		t.Error("missing fallback title")
	}
	if !strings.Contains(doc.HTML, "<td>Unknown</td>") {
		t.Error("missing fallback author")
	}

	blank := newTestFormatter().Format(Draft{Body: "\n\n   \n\t\n"}, nil)
	if !strings.Contains(mainOf(t, blank), "<p></p>") {
		t.Error("whitespace body should degrade to an empty paragraph")
	}
}

func TestEmptyBodyStillCarriesCharts(t *testing.T) {
	doc := newTestFormatter().Format(Draft{}, []chart.Rendered{fakeChart("Budget Allocation", chart.AnchorBudget)})
	if strings.Count(doc.HTML, "<img") != 1 || doc.Appended != 1 {
		t.Errorf("chart lost on empty body: appended=%d", doc.Appended)
	}
	if strings.Contains(mainOf(t, doc), "<p></p>") {
		t.Error("empty paragraph should not be emitted when charts are present")
	}
}

type anchorAll struct{}

func (anchorAll) MatchesAnchor(string, chart.Anchor) bool { return true }

func TestCustomAnchorMatcher(t *testing.T) {
	f := New(WithClock(func() time.Time { return fixedNow }), WithAnchorMatcher(anchorAll{}))
	doc := f.Format(Draft{Body: "Intro:\ntext"}, []chart.Rendered{fakeChart("Risk", chart.AnchorRisk)})
	if doc.Inserted != 1 {
		t.Errorf("inserted=%d", doc.Inserted)
	}
}
