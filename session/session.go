// Package session keeps the caller-owned conversation state: utterances,
// the round counter and the round the last document was produced at.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"auto_dialogue_document/gate"
)

var ErrNotFound = errors.New("session not found")

// State is a point-in-time copy of a session.
type State struct {
	ID                string           `json:"id"`
	Utterances        []gate.Utterance `json:"utterances"`
	Round             int              `json:"round"`
	LastDocumentRound int              `json:"last_document_round"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Snapshot returns the immutable gate input for this state.
func (s State) Snapshot() gate.Snapshot {
	return gate.Snapshot{
		Utterances:        append([]gate.Utterance(nil), s.Utterances...),
		Round:             s.Round,
		LastDocumentRound: s.LastDocumentRound,
	}
}

// Store persists session state. ClaimDocumentRound is a compare-and-swap:
// it sets LastDocumentRound to round only if it still equals expectedLast,
// so two concurrent requests cannot both pass the cooldown for one window.
type Store interface {
	Create(ctx context.Context) (State, error)
	Get(ctx context.Context, id string) (State, error)
	Append(ctx context.Context, id string, u gate.Utterance) (State, error)
	AdvanceRound(ctx context.Context, id string) (State, error)
	ClaimDocumentRound(ctx context.Context, id string, expectedLast, round int) (bool, error)
	Close() error
}

func newID() string {
	return uuid.NewString()
}
