package generator

import (
	"fmt"
	"strings"

	"auto_dialogue_document/gate"
)

const transcriptMarker = "Transcript:\n"

// Prompt is the message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// BuildDraftPrompt asks the model to write up what the participants concluded.
func BuildDraftPrompt(s gate.Snapshot) Prompt {
	var sb strings.Builder
	sb.WriteString("Write a formal document capturing the conclusions of the discussion below.\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Start with a level-one heading holding the document title.\n")
	sb.WriteString("- The next line must be `Category: <one or two words>`, e.g. budget, protocol, research plan.\n")
	sb.WriteString("- Use level-two headings for sections and bullet or numbered lists for items.\n")
	sb.WriteString("- If costs, schedules or risks were discussed, give each its own section named Budget, Timeline or Risk Assessment.\n")
	sb.WriteString("- Only record what the participants said or agreed; do not invent figures.\n")
	if speakers := s.Speakers(); len(speakers) > 0 {
		sb.WriteString(fmt.Sprintf("- Participants: %s.\n", strings.Join(speakers, ", ")))
	}
	sb.WriteString("\n")
	sb.WriteString(transcriptMarker)
	sb.WriteString(s.Transcript())

	return Prompt{
		System: "You turn meeting transcripts into structured documents. Reply with Markdown only, no extra commentary.",
		User:   sb.String(),
	}
}

// transcriptFrom recovers the transcript embedded in a draft prompt.
func transcriptFrom(p Prompt) string {
	_, after, found := strings.Cut(p.User, transcriptMarker)
	if !found {
		return ""
	}
	return after
}
