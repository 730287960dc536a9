package engine

import (
	"testing"

	"bsm/internal/domain"
)

func TestTransitionStateDefaultsToFalse(t *testing.T) {
	t.Parallel()

	state := NewTransitionState()
	if state.Get(1, domain.MatchKindName, "x") {
		t.Fatalf("absent key must read false")
	}
	state.Set(1, domain.MatchKindName, "x", true)
	if !state.Get(1, domain.MatchKindName, "x") {
		t.Fatalf("expected stored true")
	}
	if state.Get(1, domain.MatchKindMap, "x") {
		t.Fatalf("kinds must not share keys")
	}
}

func TestTransitionStatePruneRules(t *testing.T) {
	t.Parallel()

	state := NewTransitionState()
	state.Set(1, domain.MatchKindName, "a", true)
	state.Set(1, domain.MatchKindMap, "m", false)
	state.Set(2, domain.MatchKindName, "a", true)

	removed := state.PruneRules(map[int64]struct{}{2: {}})
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if state.Len() != 1 || !state.Get(2, domain.MatchKindName, "a") {
		t.Fatalf("unexpected remaining state len=%d", state.Len())
	}
}
