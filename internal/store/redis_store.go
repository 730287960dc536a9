package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"bsm/internal/config"
	"bsm/internal/domain"

	"github.com/go-redis/redis/v8"
)

const redisCASAttempts = 16

// RedisStore persists rules as JSON strings with ID index sets.
// Params: Redis client and key prefix.
// Returns: Redis-backed rule store; updates use WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies connectivity.
// Params: address, password (inline or env), DB index, and key prefix.
// Returns: ready store or ping error.
func NewRedisStore(ctx context.Context, cfg config.RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: config.ResolveSecret(cfg.Password, cfg.PasswordEnv),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Create allocates ID with INCR and writes rule plus index entries atomically.
// Params: rule without ID.
// Returns: stored rule.
func (s *RedisStore) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("validate rule: %w", err)
	}
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("advance rule sequence: %w", err)
	}
	rule.ID = id
	body, err := json.Marshal(rule)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("encode rule: %w", err)
	}
	member := strconv.FormatInt(id, 10)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.ruleKey(id), body, 0)
		pipe.SAdd(ctx, s.allKey(), member)
		pipe.SAdd(ctx, s.guildKey(rule.GuildID), member)
		return nil
	})
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("write rule %d: %w", id, err)
	}
	return rule, nil
}

// Get reads one rule.
func (s *RedisStore) Get(ctx context.Context, id int64) (domain.AlertRule, error) {
	return s.read(ctx, s.client, id)
}

// read decodes rule through given command runner.
// Params: context, client or tx, and rule ID.
// Returns: decoded rule or ErrNotFound.
func (s *RedisStore) read(ctx context.Context, cmd redis.Cmdable, id int64) (domain.AlertRule, error) {
	body, err := cmd.Get(ctx, s.ruleKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AlertRule{}, ErrNotFound
	}
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	var rule domain.AlertRule
	if err := json.Unmarshal(body, &rule); err != nil {
		return domain.AlertRule{}, fmt.Errorf("decode rule %d: %w", id, err)
	}
	return rule, nil
}

// ListByGuild returns guild rules sorted by ID.
func (s *RedisStore) ListByGuild(ctx context.Context, guildID string) ([]domain.AlertRule, error) {
	return s.listIndex(ctx, s.guildKey(guildID))
}

// ListAll returns every rule sorted by ID.
func (s *RedisStore) ListAll(ctx context.Context) ([]domain.AlertRule, error) {
	return s.listIndex(ctx, s.allKey())
}

// listIndex loads rules referenced by index set.
// Params: index set key.
// Returns: rules sorted by ID; dangling members are skipped.
func (s *RedisStore) listIndex(ctx context.Context, indexKey string) ([]domain.AlertRule, error) {
	members, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read rule index: %w", err)
	}
	rules := make([]domain.AlertRule, 0, len(members))
	if len(members) == 0 {
		return rules, nil
	}
	keys := make([]string, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, s.ruleKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var rule domain.AlertRule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		rules = append(rules, rule)
	}
	sortByID(rules)
	return rules, nil
}

// Update applies patch inside WATCH transaction, retrying on races.
// Params: rule ID and non-empty patch.
// Returns: updated rule, ErrNotFound, ErrInvalidPatch, or ErrConflict.
func (s *RedisStore) Update(ctx context.Context, id int64, patch domain.RulePatch) (domain.AlertRule, error) {
	key := s.ruleKey(id)
	var updated domain.AlertRule
	txn := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := prepareUpdate(current, patch)
		if err != nil {
			return err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode rule: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	for attempt := 0; attempt < redisCASAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.AlertRule{}, err
	}
	return domain.AlertRule{}, ErrConflict
}

// Delete removes rule value and index entries.
// Params: rule ID.
// Returns: ErrNotFound when absent.
func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	rule, err := s.read(ctx, s.client, id)
	if err != nil {
		return err
	}
	member := strconv.FormatInt(id, 10)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.ruleKey(id))
		pipe.SRem(ctx, s.allKey(), member)
		pipe.SRem(ctx, s.guildKey(rule.GuildID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}

// Close closes Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) seqKey() string { return s.prefix + "seq" }

func (s *RedisStore) allKey() string { return s.prefix + "rules" }

func (s *RedisStore) ruleKey(id int64) string {
	return s.prefix + "rule:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) guildKey(guildID string) string {
	return s.prefix + "guild:" + guildID
}
