package generator

import (
	"context"
	"errors"
	"fmt"

	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
)

// Agent drafts a document from a conversation once the gate has approved it.
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Draft asks the model for a write-up of the snapshot and normalizes the reply.
func (a *Agent) Draft(ctx context.Context, s gate.Snapshot) (formatter.Draft, error) {
	raw, err := a.llm.Complete(ctx, BuildDraftPrompt(s))
	if err != nil {
		return formatter.Draft{}, fmt.Errorf("generate draft: %w", err)
	}
	return PostProcess(raw, s)
}
