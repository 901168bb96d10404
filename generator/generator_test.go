package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auto_dialogue_document/gate"
)

func TestParseMarkdownNormalizesStructure(t *testing.T) {
	md := "# Renewable Budget\n\n" +
		"Category: Budget Plan\n\n" +
		"Intro paragraph with **bold** and `code` text\nspanning two lines.\n\n" +
		"## Budget Overview\n\n" +
		"* Solar\n* Wind\n  - offshore\n\n" +
		"3. third\n4. fourth\n\n" +
		"# Second Top Heading\n\n" +
		"> quoted line\n\n" +
		"```\nraw text\n```\n\n" +
		"---\n\n" +
		"See <https://example.com>."

	p, err := ParseMarkdown(md)
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if p.Title != "Renewable Budget" {
		t.Errorf("title %q", p.Title)
	}
	if p.Category != "budget plan" {
		t.Errorf("category %q", p.Category)
	}
	want := strings.Join([]string{
		"Intro paragraph with bold and code text\nspanning two lines.",
		"## Budget Overview",
		"- Solar\n- Wind\n  - offshore",
		"3. third\n4. fourth",
		"# Second Top Heading",
		"quoted line",
		"raw text",
		"See https://example.com.",
	}, "\n\n")
	if p.Body != want {
		t.Errorf("body:\n%s\nwant:\n%s", p.Body, want)
	}
}

func TestParseMarkdownWithoutTitleOrCategory(t *testing.T) {
	p, err := ParseMarkdown("## Notes\n\njust text")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "" || p.Category != "" {
		t.Errorf("unexpected %+v", p)
	}
	if p.Body != "## Notes\n\njust text" {
		t.Errorf("body %q", p.Body)
	}
}

func TestParseMarkdownRejectsEmpty(t *testing.T) {
	if _, err := ParseMarkdown("  \n "); err == nil {
		t.Error("expected error")
	}
}

func TestPostProcessAttributesSpeakers(t *testing.T) {
	s := gate.Snapshot{Utterances: []gate.Utterance{{Speaker: "Bob", Text: "x"}, {Speaker: "Alice", Text: "y"}, {Speaker: "Bob", Text: "z"}}}
	d, err := PostProcess("# Title\n\nbody", s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(d.Authors, ",") != "Bob,Alice" {
		t.Errorf("authors %v", d.Authors)
	}
	if d.Category != "general" {
		t.Errorf("category %q", d.Category)
	}
}

func TestBuildDraftPrompt(t *testing.T) {
	s := gate.Snapshot{Utterances: []gate.Utterance{{Speaker: "Alice", Text: "the budget"}, {Speaker: "Bob", Text: "agreed"}}}
	p := BuildDraftPrompt(s)
	if !strings.Contains(p.User, "Participants: Alice, Bob.") {
		t.Error("missing participants")
	}
	if transcriptFrom(p) != "Alice: the budget\nBob: agreed" {
		t.Errorf("transcript %q", transcriptFrom(p))
	}
	if p.System == "" {
		t.Error("empty system prompt")
	}
}

func TestAgentWithMockLLM(t *testing.T) {
	agent, err := NewAgent(MockLLM{})
	if err != nil {
		t.Fatal(err)
	}
	s := gate.Snapshot{Utterances: gate.ParseTranscript("Alice: we need to create a budget document\nBob: yes\nCarol: agreed")}
	d, err := agent.Draft(context.Background(), s)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if d.Title != "Discussion Summary" || d.Category != "budget" {
		t.Errorf("got title %q category %q", d.Title, d.Category)
	}
	if !strings.Contains(d.Body, "## Budget Overview") || !strings.Contains(d.Body, "- Alice: we need to create a budget document") {
		t.Errorf("body:\n%s", d.Body)
	}
	if strings.Join(d.Authors, ",") != "Alice,Bob,Carol" {
		t.Errorf("authors %v", d.Authors)
	}
}

type failingLLM struct{}

func (failingLLM) Complete(context.Context, Prompt) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestAgentSurfacesLLMErrors(t *testing.T) {
	agent, _ := NewAgent(failingLLM{})
	_, err := agent.Draft(context.Background(), gate.Snapshot{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("got %v", err)
	}
	if _, err := NewAgent(nil); err == nil {
		t.Error("nil client should be rejected")
	}
}

func TestOpenAILLMComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "# Plan\n\nCategory: budget"}
			}]
		}`))
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "gpt-test", APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := llm.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "# Plan\n\nCategory: budget" {
		t.Errorf("content %q", out)
	}
	if got["model"] != "gpt-test" {
		t.Errorf("model %v", got["model"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message %v", msgs[0])
	}
}

func TestNewOpenAILLMValidation(t *testing.T) {
	if _, err := NewOpenAILLMFromConfig(nil); err == nil {
		t.Error("nil config")
	}
	if _, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "m"}); err == nil {
		t.Error("missing key")
	}
	if _, err := NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k"}); err == nil {
		t.Error("missing model")
	}
}
