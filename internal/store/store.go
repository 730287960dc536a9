package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"bsm/internal/config"
	"bsm/internal/domain"
)

var (
	// ErrNotFound indicates absent rule ID.
	ErrNotFound = errors.New("rule not found")
	// ErrConflict indicates concurrent modification that exhausted CAS retries.
	ErrConflict = errors.New("revision conflict")
	// ErrInvalidPatch indicates update without any changed field.
	ErrInvalidPatch = errors.New("patch changes nothing")
)

// Store provides durable alert rule persistence.
// Params: CRUD operations keyed by store-assigned rule ID.
// Returns: backend persistence behavior; lists are sorted by ID.
type Store interface {
	Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error)
	Get(ctx context.Context, id int64) (domain.AlertRule, error)
	ListByGuild(ctx context.Context, guildID string) ([]domain.AlertRule, error)
	ListAll(ctx context.Context) ([]domain.AlertRule, error)
	Update(ctx context.Context, id int64, patch domain.RulePatch) (domain.AlertRule, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// New opens rule store selected by config.
// Params: store settings and seed rules for the memory backend.
// Returns: ready store or connection/setup error.
func New(ctx context.Context, cfg config.StoreConfig, seeds []config.RuleConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory, "":
		memory := NewMemoryStore()
		if err := memory.Seed(ctx, seeds); err != nil {
			return nil, err
		}
		return memory, nil
	case config.StoreBackendNATS:
		return NewNATSStore(ctx, cfg.NATS)
	case config.StoreBackendPostgres:
		return NewPostgresStore(ctx, cfg.Postgres)
	case config.StoreBackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// RuleFromConfig converts one seed table into an unsaved rule.
// Params: seed rule config.
// Returns: rule without ID.
func RuleFromConfig(seed config.RuleConfig) domain.AlertRule {
	rule := domain.AlertRule{
		GuildID:             strings.TrimSpace(seed.GuildID),
		NameFilter:          seed.NameFilter,
		MapFilter:           seed.MapFilter,
		TargetChannel:       strings.TrimSpace(seed.Channel),
		PingTarget:          strings.TrimSpace(seed.Ping),
		BelowWarningEnabled: seed.BelowWarning,
	}
	if seed.MinPlayers != nil {
		rule.MinPlayers = domain.IntPtr(*seed.MinPlayers)
	}
	return rule
}

// prepareUpdate validates patch against current rule.
// Params: stored rule and patch.
// Returns: patched rule or validation error.
func prepareUpdate(current domain.AlertRule, patch domain.RulePatch) (domain.AlertRule, error) {
	if patch.IsEmpty() {
		return domain.AlertRule{}, ErrInvalidPatch
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("validate rule %d: %w", current.ID, err)
	}
	return next, nil
}

// cloneRule detaches MinPlayers pointer from stored copy.
func cloneRule(rule domain.AlertRule) domain.AlertRule {
	if rule.MinPlayers != nil {
		rule.MinPlayers = domain.IntPtr(*rule.MinPlayers)
	}
	return rule
}

// sortByID orders rules by ascending ID in place.
func sortByID(rules []domain.AlertRule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}
