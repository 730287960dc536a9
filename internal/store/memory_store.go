package store

import (
	"context"
	"fmt"
	"sync"

	"bsm/internal/config"
	"bsm/internal/domain"
)

// MemoryStore keeps rules in process memory for single-instance mode.
// Params: rule map guarded by RW mutex and ID sequence.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu     sync.RWMutex
	rules  map[int64]domain.AlertRule
	nextID int64
}

// NewMemoryStore creates empty in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[int64]domain.AlertRule)}
}

// Seed creates one rule per config table in config order.
// Params: seed rules from [rule.<name>] tables.
// Returns: first create error.
func (s *MemoryStore) Seed(ctx context.Context, seeds []config.RuleConfig) error {
	for _, seed := range seeds {
		if _, err := s.Create(ctx, RuleFromConfig(seed)); err != nil {
			return fmt.Errorf("seed rule %q: %w", seed.Name, err)
		}
	}
	return nil
}

// Create assigns next ID and stores rule.
// Params: rule without ID.
// Returns: stored rule or validation error.
func (s *MemoryStore) Create(_ context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("validate rule: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rule.ID = s.nextID
	s.rules[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

// Get returns one rule by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return domain.AlertRule{}, ErrNotFound
	}
	return cloneRule(rule), nil
}

// ListByGuild returns guild rules sorted by ID.
func (s *MemoryStore) ListByGuild(_ context.Context, guildID string) ([]domain.AlertRule, error) {
	return s.list(func(rule domain.AlertRule) bool { return rule.GuildID == guildID }), nil
}

// ListAll returns full rule snapshot sorted by ID.
func (s *MemoryStore) ListAll(_ context.Context) ([]domain.AlertRule, error) {
	return s.list(func(domain.AlertRule) bool { return true }), nil
}

// list copies rules accepted by keep.
// Params: filter predicate.
// Returns: sorted detached copies.
func (s *MemoryStore) list(keep func(domain.AlertRule) bool) []domain.AlertRule {
	s.mu.RLock()
	out := make([]domain.AlertRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if keep(rule) {
			out = append(out, cloneRule(rule))
		}
	}
	s.mu.RUnlock()
	sortByID(out)
	return out
}

// Update applies patch atomically.
// Params: rule ID and non-empty patch.
// Returns: updated rule, ErrNotFound, or ErrInvalidPatch.
func (s *MemoryStore) Update(_ context.Context, id int64, patch domain.RulePatch) (domain.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rules[id]
	if !ok {
		return domain.AlertRule{}, ErrNotFound
	}
	next, err := prepareUpdate(current, patch)
	if err != nil {
		return domain.AlertRule{}, err
	}
	s.rules[id] = cloneRule(next)
	return cloneRule(next), nil
}

// Delete removes rule.
// Params: rule ID.
// Returns: ErrNotFound when absent.
func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// Close is a no-op for memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
