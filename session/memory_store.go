package session

import (
	"context"
	"sync"
	"time"

	"auto_dialogue_document/gate"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*State
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*State), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context) (State, error) {
	st := &State{ID: newID(), CreatedAt: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[st.ID] = st
	return copyState(st), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	return copyState(st), nil
}

func (s *MemoryStore) Append(_ context.Context, id string, u gate.Utterance) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	st.Utterances = append(st.Utterances, u)
	return copyState(st), nil
}

func (s *MemoryStore) AdvanceRound(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	st.Round++
	return copyState(st), nil
}

func (s *MemoryStore) ClaimDocumentRound(_ context.Context, id string, expectedLast, round int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if st.LastDocumentRound != expectedLast {
		return false, nil
	}
	st.LastDocumentRound = round
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyState(st *State) State {
	out := *st
	out.Utterances = append([]gate.Utterance(nil), st.Utterances...)
	return out
}
