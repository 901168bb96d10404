// Package gate decides whether a conversation has matured enough to be
// written up as a document.
package gate

import (
	"fmt"
	"strings"

	"auto_dialogue_document/rules"
)

const (
	DefaultMinDepth       = 3
	DefaultCooldownRounds = 5

	ReasonInsufficientDepth = "insufficient depth"
	ReasonCooldown          = "cooldown active"
	ReasonNoSignal          = "no thoughtful consensus or substantive content"
	ReasonAccepted          = "quality criteria met"
)

// Config holds the thresholds and phrase families used by the gate.
type Config struct {
	MinDepth           int
	CooldownRounds     int
	ConsensusPhrases   []string
	SubstantivePhrases []string
}

// DefaultConfig returns the built-in thresholds and phrase tables.
func DefaultConfig() Config {
	r := rules.Default()
	return Config{
		MinDepth:           DefaultMinDepth,
		CooldownRounds:     DefaultCooldownRounds,
		ConsensusPhrases:   r.Gate.Consensus,
		SubstantivePhrases: r.Gate.Substantive,
	}
}

// Decision is the result of a single evaluation. It is never reused across rounds.
type Decision struct {
	ShouldCreate bool     `json:"should_create"`
	Reason       string   `json:"reason"`
	Consensus    []string `json:"consensus,omitempty"`
	Substantive  []string `json:"substantive,omitempty"`
}

// Gate evaluates conversation state. It holds no mutable state.
type Gate struct {
	minDepth    int
	cooldown    int
	consensus   []string
	substantive []string
}

func New(cfg Config) *Gate {
	if cfg.MinDepth <= 0 {
		cfg.MinDepth = DefaultMinDepth
	}
	if cfg.CooldownRounds < 0 {
		cfg.CooldownRounds = DefaultCooldownRounds
	}
	return &Gate{
		minDepth:    cfg.MinDepth,
		cooldown:    cfg.CooldownRounds,
		consensus:   lowerAll(cfg.ConsensusPhrases),
		substantive: lowerAll(cfg.SubstantivePhrases),
	}
}

// Evaluate applies depth, cooldown and signal checks in order; the first
// failing check decides. Updating lastDocumentRound after a successful
// creation is the caller's job.
func (g *Gate) Evaluate(transcript string, currentRound, lastDocumentRound int) Decision {
	depth := CountAttributedLines(transcript)
	if depth < g.minDepth {
		return Decision{
			Reason: fmt.Sprintf("%s: %d speaker lines, need %d", ReasonInsufficientDepth, depth, g.minDepth),
		}
	}

	elapsed := currentRound - lastDocumentRound
	if elapsed < g.cooldown {
		return Decision{
			Reason: fmt.Sprintf("%s: %d rounds remaining", ReasonCooldown, g.cooldown-elapsed),
		}
	}

	lowered := strings.ToLower(transcript)
	consensus := containsAny(lowered, g.consensus)
	substantive := containsAny(lowered, g.substantive)
	// Either family is enough. This is deliberately loose.
	if len(consensus) == 0 && len(substantive) == 0 {
		return Decision{Reason: ReasonNoSignal}
	}

	var found []string
	if len(consensus) > 0 {
		found = append(found, "consensus")
	}
	if len(substantive) > 0 {
		found = append(found, "substantive content")
	}
	return Decision{
		ShouldCreate: true,
		Reason:       fmt.Sprintf("%s (%s)", ReasonAccepted, strings.Join(found, ", ")),
		Consensus:    consensus,
		Substantive:  substantive,
	}
}

// EvaluateSnapshot evaluates a structured snapshot.
func (g *Gate) EvaluateSnapshot(s Snapshot) Decision {
	return g.Evaluate(s.Transcript(), s.Round, s.LastDocumentRound)
}

// CountAttributedLines counts lines of the form "Speaker: message".
func CountAttributedLines(transcript string) int {
	n := 0
	for _, line := range strings.Split(transcript, "\n") {
		if _, _, ok := SplitAttribution(line); ok {
			n++
		}
	}
	return n
}

// SplitAttribution splits "Name: message" into its parts. Both must be non-empty.
func SplitAttribution(line string) (speaker, text string, ok bool) {
	speaker, text, found := strings.Cut(strings.TrimSpace(line), ":")
	if !found {
		return "", "", false
	}
	speaker = strings.TrimSpace(speaker)
	text = strings.TrimSpace(text)
	if speaker == "" || text == "" {
		return "", "", false
	}
	return speaker, text, true
}

func containsAny(lowered string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if p != "" && strings.Contains(lowered, p) {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
