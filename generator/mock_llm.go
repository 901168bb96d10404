package generator

import (
	"context"
	"strings"

	"auto_dialogue_document/gate"
)

// MockLLM is a local stand-in that never calls a model. It turns the
// transcript in the prompt into a small Markdown document.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	utterances := gate.ParseTranscript(transcriptFrom(prompt))
	lowered := strings.ToLower(transcriptFrom(prompt))

	category := "general"
	for _, c := range []string{"budget", "timeline", "risk", "protocol"} {
		if strings.Contains(lowered, c) {
			category = c
			break
		}
	}

	var sb strings.Builder
	sb.WriteString("# Discussion Summary\n\n")
	sb.WriteString("Category: " + category + "\n\n")
	sb.WriteString("## Key Points\n\n")
	for _, u := range utterances {
		sb.WriteString("- **" + u.Speaker + "**: " + u.Text + "\n")
	}
	if category != "general" {
		sb.WriteString("\n## " + strings.ToUpper(category[:1]) + category[1:] + " Overview\n\n")
		sb.WriteString("The group agreed to capture this " + category + " in writing.\n")
	}
	sb.WriteString("\n## Next Steps\n\n")
	sb.WriteString("1. Circulate this draft to every participant.\n")
	sb.WriteString("2. Collect corrections before the next round.\n")
	return sb.String(), nil
}
