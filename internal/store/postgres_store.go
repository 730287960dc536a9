package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bsm/internal/config"
	"bsm/internal/domain"

	_ "github.com/lib/pq"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS alert_rules (
	id BIGSERIAL PRIMARY KEY,
	guild_id TEXT NOT NULL,
	name_filter TEXT,
	map_filter TEXT,
	min_players INTEGER,
	channel_id TEXT NOT NULL,
	ping_role_id TEXT,
	below_warning_enabled BOOLEAN NOT NULL DEFAULT FALSE
)`

const postgresColumns = `id, guild_id, name_filter, map_filter, min_players, channel_id, ping_role_id, below_warning_enabled`

// PostgresStore persists rules in alert_rules table.
// Params: database handle owning connection pool.
// Returns: SQL-backed rule store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens connection pool, pings it, and ensures schema.
// Params: DSN (inline or env) and pool sizes.
// Returns: ready store or connection error.
func NewPostgresStore(ctx context.Context, cfg config.PostgresStoreConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ResolveSecret(cfg.DSN, cfg.DSNEnv))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStoreWithDB(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing handle.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates alert_rules table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create alert_rules table: %w", err)
	}
	return nil
}

// Create inserts rule and returns generated ID.
// Params: rule without ID.
// Returns: stored rule.
func (s *PostgresStore) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("validate rule: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO alert_rules (guild_id, name_filter, map_filter, min_players, channel_id, ping_role_id, below_warning_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rule.GuildID,
		nullString(rule.NameFilter),
		nullString(rule.MapFilter),
		nullInt(rule.MinPlayers),
		rule.TargetChannel,
		nullString(rule.PingTarget),
		rule.BelowWarningEnabled,
	).Scan(&rule.ID)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

// Get reads one rule by ID.
func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.AlertRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postgresColumns+` FROM alert_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AlertRule{}, ErrNotFound
	}
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	return rule, nil
}

// ListByGuild returns guild rules ordered by ID.
func (s *PostgresStore) ListByGuild(ctx context.Context, guildID string) ([]domain.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postgresColumns+` FROM alert_rules WHERE guild_id = $1 ORDER BY id`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild rules: %w", err)
	}
	return collectRules(rows)
}

// ListAll returns every rule ordered by ID.
func (s *PostgresStore) ListAll(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postgresColumns+` FROM alert_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}

// Update locks row, applies patch, and writes full row in one transaction.
// Params: rule ID and non-empty patch.
// Returns: updated rule, ErrNotFound, or ErrInvalidPatch.
func (s *PostgresStore) Update(ctx context.Context, id int64, patch domain.RulePatch) (domain.AlertRule, error) {
	if patch.IsEmpty() {
		return domain.AlertRule{}, ErrInvalidPatch
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+postgresColumns+` FROM alert_rules WHERE id = $1 FOR UPDATE`, id)
	current, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AlertRule{}, ErrNotFound
	}
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("lock rule %d: %w", id, err)
	}
	next, err := prepareUpdate(current, patch)
	if err != nil {
		return domain.AlertRule{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE alert_rules SET name_filter = $1, map_filter = $2, min_players = $3, channel_id = $4, ping_role_id = $5, below_warning_enabled = $6 WHERE id = $7`,
		nullString(next.NameFilter),
		nullString(next.MapFilter),
		nullInt(next.MinPlayers),
		next.TargetChannel,
		nullString(next.PingTarget),
		next.BelowWarningEnabled,
		id,
	)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("update rule %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.AlertRule{}, fmt.Errorf("commit rule %d: %w", id, err)
	}
	return next, nil
}

// Delete removes rule row.
// Params: rule ID.
// Returns: ErrNotFound when nothing was deleted.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRule decodes one alert_rules row.
// Params: row positioned on postgresColumns.
// Returns: decoded rule or scan error.
func scanRule(row rowScanner) (domain.AlertRule, error) {
	var (
		rule       domain.AlertRule
		nameFilter sql.NullString
		mapFilter  sql.NullString
		minPlayers sql.NullInt64
		pingRole   sql.NullString
	)
	if err := row.Scan(
		&rule.ID,
		&rule.GuildID,
		&nameFilter,
		&mapFilter,
		&minPlayers,
		&rule.TargetChannel,
		&pingRole,
		&rule.BelowWarningEnabled,
	); err != nil {
		return domain.AlertRule{}, err
	}
	rule.NameFilter = nameFilter.String
	rule.MapFilter = mapFilter.String
	rule.PingTarget = pingRole.String
	if minPlayers.Valid {
		rule.MinPlayers = domain.IntPtr(int(minPlayers.Int64))
	}
	return rule, nil
}

// collectRules drains result set.
// Params: open rows; closed before return.
// Returns: decoded rules.
func collectRules(rows *sql.Rows) ([]domain.AlertRule, error) {
	defer rows.Close()
	rules := make([]domain.AlertRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// nullString stores empty optional text as NULL.
func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// nullInt stores unset threshold as NULL.
func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
