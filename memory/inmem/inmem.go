// Package inmem provides an in-memory implementation of memory.Store for
// testing and local development. Data is lost when the process exits.
package inmem

import (
	"context"
	"sync"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/memory"
)

// Store implements memory.Store with an in-process map keyed by session
// ID. It is thread-safe: one read-write mutex guards every session, so all
// writes serialise while reads may run concurrently.
type Store struct {
	mu     sync.RWMutex
	states map[string]apitypes.SessionState
	events map[string][]memory.SessionEvent
}

// New returns a ready-to-use, empty in-memory store.
func New() *Store {
	return &Store{
		states: make(map[string]apitypes.SessionState),
		events: make(map[string][]memory.SessionEvent),
	}
}

// LoadState returns a defensive copy of the session's state.
func (s *Store) LoadState(_ context.Context, sessionID string) (apitypes.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	if !ok {
		return apitypes.SessionState{}, false, nil
	}
	return cloneState(state), true, nil
}

// SaveState overwrites the session's persisted state.
func (s *Store) SaveState(_ context.Context, sessionID string, state apitypes.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = cloneState(state)
	return nil
}

// AppendSessionEvent appends one entry to the session's event log.
func (s *Store) AppendSessionEvent(_ context.Context, sessionID string, event memory.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], event)
	return nil
}

// Events returns a defensive copy of the session's event log, primarily
// useful for tests asserting on plan-created/step-completed entries.
func (s *Store) Events(sessionID string) []memory.SessionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[sessionID]
	out := make([]memory.SessionEvent, len(events))
	copy(out, events)
	return out
}

func cloneState(state apitypes.SessionState) apitypes.SessionState {
	steps := make([]apitypes.StepRecord, len(state.Steps))
	copy(steps, state.Steps)
	facts := make([]string, len(state.Facts))
	copy(facts, state.Facts)
	clone := apitypes.SessionState{
		Steps:       steps,
		Facts:       facts,
		LastUpdated: state.LastUpdated,
	}
	if state.Reasoning != nil {
		reasoning := *state.Reasoning
		clone.Reasoning = &reasoning
	}
	return clone
}
