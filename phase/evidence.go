package phase

import (
	"sync"

	"goa.design/agentkernel/apitypes"
)

// EvidenceStore is an append-only, mutex-guarded log of apitypes.Evidence
// for one run. All is copy-on-read: callers can never observe or mutate
// the store's backing slice, which guarantees evidence immutability once
// appended.
type EvidenceStore struct {
	mu    sync.Mutex
	items []apitypes.Evidence
}

func newEvidenceStore() *EvidenceStore {
	return &EvidenceStore{}
}

// Append adds one evidence record. Existing records are never modified or
// removed.
func (s *EvidenceStore) Append(e apitypes.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
}

// All returns a copy of every appended evidence record, in append order.
func (s *EvidenceStore) All() []apitypes.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]apitypes.Evidence, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of appended evidence records.
func (s *EvidenceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ForPhase returns a copy of the evidence records recorded for a single
// phase name, in append order.
func (s *EvidenceStore) ForPhase(phaseName string) []apitypes.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []apitypes.Evidence
	for _, e := range s.items {
		if e.Phase == phaseName {
			out = append(out, e)
		}
	}
	return out
}
