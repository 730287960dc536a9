package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bsm/internal/config"
	"bsm/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	natsRuleKeyPrefix = "rule."
	natsSeqKey        = "seq"
	natsCASAttempts   = 16
)

// NATSStore persists rules as JSON values in a JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed rule store; updates use revision CAS.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATSStore connects to NATS and opens or creates rule bucket.
// Params: setup context, NATS URLs, and bucket name.
// Returns: initialized store or setup error.
func NewNATSStore(ctx context.Context, settings config.NATSStoreConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(ctx, settings.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "alert rules",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create rule bucket %q: %w", settings.Bucket, err)
		}
	}
	return &NATSStore{nc: nc, kv: kv}, nil
}

// Create reserves next sequence value and writes rule under a fresh key.
// Params: rule without ID.
// Returns: stored rule.
func (s *NATSStore) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("validate rule: %w", err)
	}
	id, err := s.nextID(ctx)
	if err != nil {
		return domain.AlertRule{}, err
	}
	rule.ID = id
	body, err := json.Marshal(rule)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("encode rule: %w", err)
	}
	if _, err := s.kv.Create(ctx, ruleKey(id), body); err != nil {
		return domain.AlertRule{}, fmt.Errorf("create rule %d: %w", id, err)
	}
	return rule, nil
}

// nextID increments sequence key with CAS.
// Params: request context.
// Returns: allocated ID or ErrConflict after repeated races.
func (s *NATSStore) nextID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < natsCASAttempts; attempt++ {
		entry, err := s.kv.Get(ctx, natsSeqKey)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			if _, err := s.kv.Create(ctx, natsSeqKey, []byte("1")); err != nil {
				if isNATSConflict(err) {
					continue
				}
				return 0, fmt.Errorf("init rule sequence: %w", err)
			}
			return 1, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read rule sequence: %w", err)
		}
		current, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rule sequence: %w", err)
		}
		next := current + 1
		if _, err := s.kv.Update(ctx, natsSeqKey, []byte(strconv.FormatInt(next, 10)), entry.Revision()); err != nil {
			if isNATSConflict(err) {
				continue
			}
			return 0, fmt.Errorf("advance rule sequence: %w", err)
		}
		return next, nil
	}
	return 0, fmt.Errorf("advance rule sequence: %w", ErrConflict)
}

// Get reads one rule.
func (s *NATSStore) Get(ctx context.Context, id int64) (domain.AlertRule, error) {
	rule, _, err := s.getWithRevision(ctx, id)
	return rule, err
}

// getWithRevision reads rule and its KV revision.
// Params: request context and rule ID.
// Returns: decoded rule, revision, or ErrNotFound.
func (s *NATSStore) getWithRevision(ctx context.Context, id int64) (domain.AlertRule, uint64, error) {
	entry, err := s.kv.Get(ctx, ruleKey(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return domain.AlertRule{}, 0, ErrNotFound
		}
		return domain.AlertRule{}, 0, fmt.Errorf("get rule %d: %w", id, err)
	}
	var rule domain.AlertRule
	if err := json.Unmarshal(entry.Value(), &rule); err != nil {
		return domain.AlertRule{}, 0, fmt.Errorf("decode rule %d: %w", id, err)
	}
	return rule, entry.Revision(), nil
}

// ListByGuild returns guild rules sorted by ID.
func (s *NATSStore) ListByGuild(ctx context.Context, guildID string) ([]domain.AlertRule, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AlertRule, 0, len(all))
	for _, rule := range all {
		if rule.GuildID == guildID {
			out = append(out, rule)
		}
	}
	return out, nil
}

// ListAll reads every rule key in bucket.
// Params: request context bounding the key listing and reads.
// Returns: rules sorted by ID.
func (s *NATSStore) ListAll(ctx context.Context) ([]domain.AlertRule, error) {
	ids, err := s.ruleIDs(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]domain.AlertRule, 0, len(ids))
	for _, id := range ids {
		rule, _, err := s.getWithRevision(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	sortByID(rules)
	return rules, nil
}

// ruleIDs lists rule IDs present in bucket.
// Params: request context.
// Returns: IDs in listing order, or context error when cancelled mid-listing.
func (s *NATSStore) ruleIDs(ctx context.Context) ([]int64, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var ids []int64
	for key := range lister.Keys() {
		if id, ok := parseRuleKey(key); ok {
			ids = append(ids, id)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return ids, nil
}

// Update applies patch using expected revision CAS, retrying on races.
// Params: rule ID and non-empty patch.
// Returns: updated rule, ErrNotFound, ErrInvalidPatch, or ErrConflict.
func (s *NATSStore) Update(ctx context.Context, id int64, patch domain.RulePatch) (domain.AlertRule, error) {
	for attempt := 0; attempt < natsCASAttempts; attempt++ {
		current, revision, err := s.getWithRevision(ctx, id)
		if err != nil {
			return domain.AlertRule{}, err
		}
		next, err := prepareUpdate(current, patch)
		if err != nil {
			return domain.AlertRule{}, err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return domain.AlertRule{}, fmt.Errorf("encode rule: %w", err)
		}
		if _, err := s.kv.Update(ctx, ruleKey(id), body, revision); err != nil {
			if isNATSConflict(err) {
				continue
			}
			return domain.AlertRule{}, fmt.Errorf("update rule %d: %w", id, err)
		}
		return next, nil
	}
	return domain.AlertRule{}, ErrConflict
}

// Delete removes rule key.
// Params: rule ID.
// Returns: ErrNotFound when key is absent.
func (s *NATSStore) Delete(ctx context.Context, id int64) error {
	if _, _, err := s.getWithRevision(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, ruleKey(id)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}

// Close closes underlying NATS connection.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}

// ruleKey builds KV key for rule ID.
func ruleKey(id int64) string {
	return natsRuleKeyPrefix + strconv.FormatInt(id, 10)
}

// parseRuleKey extracts ID from rule key.
// Params: KV key.
// Returns: ID and true for rule keys.
func parseRuleKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, natsRuleKeyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, natsRuleKeyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// isNATSConflict detects revision mismatch errors from KV writes.
func isNATSConflict(err error) bool {
	return errors.Is(err, jetstream.ErrKeyExists) || strings.Contains(strings.ToLower(err.Error()), "wrong last sequence")
}
