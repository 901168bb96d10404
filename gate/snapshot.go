package gate

import "strings"

// Utterance is one attributed line of dialogue.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Snapshot is the immutable conversation state a decision is computed from.
type Snapshot struct {
	Utterances        []Utterance
	Round             int
	LastDocumentRound int
}

// Transcript renders the utterances in "Speaker: text" form, one per line.
func (s Snapshot) Transcript() string {
	var b strings.Builder
	for i, u := range s.Utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.Speaker)
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(u.Text, "\n", " "))
	}
	return b.String()
}

// Speakers returns each distinct speaker once, in order of first appearance.
func (s Snapshot) Speakers() []string {
	seen := make(map[string]bool, len(s.Utterances))
	var out []string
	for _, u := range s.Utterances {
		name := strings.TrimSpace(u.Speaker)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// ParseTranscript turns "Name: message" lines into utterances, skipping
// lines without attribution.
func ParseTranscript(transcript string) []Utterance {
	var out []Utterance
	for _, line := range strings.Split(transcript, "\n") {
		speaker, text, ok := SplitAttribution(line)
		if !ok {
			continue
		}
		out = append(out, Utterance{Speaker: speaker, Text: text})
	}
	return out
}
