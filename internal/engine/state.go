package engine

import (
	"sync"

	"bsm/internal/domain"
)

// TransitionKey identifies one rule crossing track.
// Params: rule ID, match kind, and matched server name or map.
// Returns: comparable map key.
type TransitionKey struct {
	RuleID int64
	Kind   domain.MatchKind
	Value  string
}

// TransitionState stores "at or above threshold" flags between cycles.
// Params: lazily populated map guarded by mutex.
// Returns: state object owned by one engine run loop.
type TransitionState struct {
	mu      sync.RWMutex
	entries map[TransitionKey]bool
}

// NewTransitionState creates empty transition state.
// Params: none.
// Returns: initialized state.
func NewTransitionState() *TransitionState {
	return &TransitionState{entries: make(map[TransitionKey]bool)}
}

// Get returns stored flag for rule/kind/key.
// Params: rule ID, match kind, and match key.
// Returns: stored flag or false when absent.
func (s *TransitionState) Get(ruleID int64, kind domain.MatchKind, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[TransitionKey{RuleID: ruleID, Kind: kind, Value: key}]
}

// Set stores flag for rule/kind/key.
// Params: rule ID, match kind, match key, and new flag.
// Returns: none.
func (s *TransitionState) Set(ruleID int64, kind domain.MatchKind, key string, above bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[TransitionKey{RuleID: ruleID, Kind: kind, Value: key}] = above
}

// Len returns number of tracked keys.
// Params: none.
// Returns: entry count.
func (s *TransitionState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// PruneRules drops entries of rules that are no longer stored.
// Params: set of rule IDs present in the current snapshot.
// Returns: number of removed entries.
func (s *TransitionState) PruneRules(active map[int64]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if _, ok := active[key.RuleID]; ok {
			continue
		}
		delete(s.entries, key)
		removed++
	}
	return removed
}
