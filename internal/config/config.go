package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"bsm/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName      = "bsm"
	defaultPollIntervalSec  = 60
	defaultHTTPListen       = ":8080"
	defaultHealthPath       = "/healthz"
	defaultReadyPath        = "/readyz"
	defaultMetricsPath      = "/metrics"
	defaultFeedURL          = "https://publicapi.battlebit.cloud/Servers/GetServerList"
	defaultFeedTimeoutSec   = 15
	defaultFeedMaxBodyBytes = 8 << 20
	defaultFeedUserAgent    = "bsm/1.0"
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSBucket       = "bsm_rules"
	defaultRedisAddr        = "127.0.0.1:6379"
	defaultRedisKeyPrefix   = "bsm:"
	defaultTelegramAPIBase  = "https://api.telegram.org"
	defaultNotifyTimeoutSec = 10
	defaultRetryAttempts    = 3

	// StoreBackendMemory keeps rules in process memory seeded from [rule.<name>] tables.
	StoreBackendMemory = "memory"
	// StoreBackendNATS keeps rules in a JetStream KV bucket.
	StoreBackendNATS = "nats"
	// StoreBackendPostgres keeps rules in a PostgreSQL table.
	StoreBackendPostgres = "postgres"
	// StoreBackendRedis keeps rules as JSON values in Redis.
	StoreBackendRedis = "redis"

	// PlatformDiscord delivers through a Discord bot and serves slash commands.
	PlatformDiscord = "discord"
	// PlatformTelegram delivers through Telegram Bot API.
	PlatformTelegram = "telegram"
	// PlatformMattermost delivers through Mattermost REST API.
	PlatformMattermost = "mattermost"
)

var (
	storeBackends = []string{StoreBackendMemory, StoreBackendNATS, StoreBackendPostgres, StoreBackendRedis}
	platforms     = []string{PlatformDiscord, PlatformTelegram, PlatformMattermost}

	legacyRuleArrayPattern = regexp.MustCompile(`(?m)^\s*\[\[\s*rule\s*\]\]`)
)

// Config holds service runtime settings and optional seed rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	HTTP    HTTPConfig    `toml:"http"`
	Feed    FeedConfig    `toml:"feed"`
	Store   StoreConfig   `toml:"store"`
	Chat    ChatConfig    `toml:"chat"`
	Notify  NotifyConfig  `toml:"notify"`
	Rule    []RuleConfig  `toml:"rule"`
}

// rawConfig mirrors TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule map keyed by rule name.
type rawConfig struct {
	Service ServiceConfig            `toml:"service"`
	Log     LogConfig                `toml:"log"`
	HTTP    HTTPConfig               `toml:"http"`
	Feed    FeedConfig               `toml:"feed"`
	Store   StoreConfig              `toml:"store"`
	Chat    ChatConfig               `toml:"chat"`
	Notify  NotifyConfig             `toml:"notify"`
	Rule    map[string]rawRuleConfig `toml:"rule"`
}

// ServiceConfig contains process-level settings.
// Params: name, poll interval, and reload toggle.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name            string `toml:"name"`
	PollIntervalSec int    `toml:"poll_interval_sec"`
	ReloadEnabled   bool   `toml:"reload_enabled"`
}

// HTTPConfig configures health/ready/metrics endpoints.
type HTTPConfig struct {
	Listen      string `toml:"listen"`
	HealthPath  string `toml:"health_path"`
	ReadyPath   string `toml:"ready_path"`
	MetricsPath string `toml:"metrics_path"`
}

// FeedConfig configures public server list polling.
// Params: endpoint URL, request timeout, body limit, and user agent.
// Returns: feed client options.
type FeedConfig struct {
	URL          string `toml:"url"`
	TimeoutSec   int    `toml:"timeout_sec"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	UserAgent    string `toml:"user_agent"`
}

// StoreConfig selects rule store backend and its settings.
type StoreConfig struct {
	Backend  string              `toml:"backend"`
	NATS     NATSStoreConfig     `toml:"nats"`
	Postgres PostgresStoreConfig `toml:"postgres"`
	Redis    RedisStoreConfig    `toml:"redis"`
}

// NATSStoreConfig contains JetStream KV settings for rule storage.
type NATSStoreConfig struct {
	URL    []string `toml:"url"`
	Bucket string   `toml:"bucket"`
}

// PostgresStoreConfig contains PostgreSQL connection settings.
// Params: DSN inline or via environment variable and pool sizes.
// Returns: postgres backend options.
type PostgresStoreConfig struct {
	DSN      string `toml:"dsn"`
	DSNEnv   string `toml:"dsn_env"`
	MaxConns int    `toml:"max_conns"`
	MaxIdle  int    `toml:"max_idle"`
}

// RedisStoreConfig contains Redis connection settings.
type RedisStoreConfig struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	PasswordEnv string `toml:"password_env"`
	DB          int    `toml:"db"`
	KeyPrefix   string `toml:"key_prefix"`
}

// ChatConfig selects chat platform used for delivery and readiness.
type ChatConfig struct {
	Platform string `toml:"platform"`
}

// NotifyConfig defines per-platform delivery settings and optional webhook mirror.
type NotifyConfig struct {
	Discord    DiscordConfig    `toml:"discord"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Mattermost MattermostConfig `toml:"mattermost"`
	Webhook    WebhookConfig    `toml:"webhook"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for notifications.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// Attempts returns the bounded number of send attempts for one message.
func (r NotifyRetry) Attempts() int {
	if r.MaxAttempts <= 0 {
		return defaultRetryAttempts
	}
	return r.MaxAttempts
}

// Budget returns the worst-case time one message spends waiting between attempts.
// Params: none.
// Returns: zero when retries are disabled.
func (r NotifyRetry) Budget() time.Duration {
	if !r.Enabled {
		return 0
	}
	backoff := time.Duration(r.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(r.MaxMS) * time.Millisecond
	var total time.Duration
	for attempt := 1; attempt < r.Attempts(); attempt++ {
		total += backoff
		if strings.EqualFold(r.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return total
}

// DiscordConfig defines Discord bot settings.
// Params: token (inline or env), optional guild for command registration, retry policy.
// Returns: Discord gateway and sender configuration.
type DiscordConfig struct {
	BotToken       string      `toml:"bot_token"`
	BotTokenEnv    string      `toml:"bot_token_env"`
	CommandGuildID string      `toml:"command_guild_id"`
	Retry          NotifyRetry `toml:"retry"`
}

// TelegramConfig defines Telegram Bot API settings.
// Params: token, API base URL, message template, and retry policy.
// Returns: Telegram sender configuration.
type TelegramConfig struct {
	BotToken        string      `toml:"bot_token"`
	BotTokenEnv     string      `toml:"bot_token_env"`
	APIBase         string      `toml:"api_base"`
	MessageTemplate string      `toml:"message_template"`
	Retry           NotifyRetry `toml:"retry"`
}

// MattermostConfig defines Mattermost API settings.
// Params: API base URL, bot token, timeout, message template, and retry policy.
// Returns: Mattermost sender configuration.
type MattermostConfig struct {
	BaseURL         string      `toml:"base_url"`
	BotToken        string      `toml:"bot_token"`
	BotTokenEnv     string      `toml:"bot_token_env"`
	TimeoutSec      int         `toml:"timeout_sec"`
	MessageTemplate string      `toml:"message_template"`
	Retry           NotifyRetry `toml:"retry"`
}

// WebhookConfig defines best-effort JSON mirror of delivered events.
type WebhookConfig struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// RuleConfig is one seed alert rule for the memory backend.
// Params: guild, filters, threshold, channel, ping, and below-threshold toggle.
// Returns: rule definition created at startup.
type RuleConfig struct {
	Name         string `toml:"name"`
	GuildID      string `toml:"guild_id"`
	NameFilter   string `toml:"name_filter"`
	MapFilter    string `toml:"map_filter"`
	MinPlayers   *int   `toml:"min_players"`
	Channel      string `toml:"channel"`
	Ping         string `toml:"ping"`
	BelowWarning bool   `toml:"below_warning"`
}

// rawRuleConfig stores one rule body from `[rule.<name>]` table.
type rawRuleConfig struct {
	Name         string `toml:"name"`
	GuildID      string `toml:"guild_id"`
	NameFilter   string `toml:"name_filter"`
	MapFilter    string `toml:"map_filter"`
	MinPlayers   *int   `toml:"min_players"`
	Channel      string `toml:"channel"`
	Ping         string `toml:"ping"`
	BelowWarning bool   `toml:"below_warning"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// WatchPath returns filesystem path observed for hot reload.
// Params: none.
// Returns: config file path or directory path.
func (s ConfigSource) WatchPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Dir
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveSecret picks inline value or falls back to environment variable.
// Params: inline value and optional environment variable name.
// Returns: trimmed secret or empty string.
func ResolveSecret(value, envName string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	if strings.TrimSpace(envName) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(strings.TrimSpace(envName)))
}

// PlatformRetry returns retry policy configured for chat platform.
// Params: notify config and normalized platform name.
// Returns: retry policy or zero policy for unknown platform.
func PlatformRetry(cfg NotifyConfig, platform string) NotifyRetry {
	switch platform {
	case PlatformDiscord:
		return cfg.Discord.Retry
	case PlatformTelegram:
		return cfg.Telegram.Retry
	case PlatformMattermost:
		return cfg.Mattermost.Retry
	default:
		return NotifyRetry{}
	}
}

// PlatformTemplate returns text template configured for chat platform.
// Params: notify config and normalized platform name.
// Returns: template body or empty string when platform renders natively.
func PlatformTemplate(cfg NotifyConfig, platform string) string {
	switch platform {
	case PlatformTelegram:
		return cfg.Telegram.MessageTemplate
	case PlatformMattermost:
		return cfg.Mattermost.MessageTemplate
	default:
		return ""
	}
}

// NormalizeName lower-cases and trims enum-like config values.
// Params: raw value.
// Returns: normalized value.
func NormalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// normalizeRawConfig converts raw TOML model to runtime config.
// Params: decoded raw config from file fragment.
// Returns: normalized config snapshot.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service: raw.Service,
		Log:     raw.Log,
		HTTP:    raw.HTTP,
		Feed:    raw.Feed,
		Store:   raw.Store,
		Chat:    raw.Chat,
		Notify:  raw.Notify,
	}
	if len(raw.Rule) == 0 {
		return cfg, nil
	}

	names := make([]string, 0, len(raw.Rule))
	for name := range raw.Rule {
		names = append(names, name)
	}
	sort.Strings(names)
	cfg.Rule = make([]RuleConfig, 0, len(names))
	for _, name := range names {
		body := raw.Rule[name]
		if strings.TrimSpace(body.Name) != "" {
			return Config{}, fmt.Errorf("rule.%s.name is not supported; use [rule.%s] key as rule name", name, name)
		}
		cfg.Rule = append(cfg.Rule, RuleConfig{
			Name:         name,
			GuildID:      body.GuildID,
			NameFilter:   body.NameFilter,
			MapFilter:    body.MapFilter,
			MinPlayers:   body.MinPlayers,
			Channel:      body.Channel,
			Ping:         body.Ping,
			BelowWarning: body.BelowWarning,
		})
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if legacyRuleArrayPattern.Match(body) {
		return Config{}, fmt.Errorf("decode config file %q: legacy [[rule]] format is not supported; use [rule.<rule_name>] tables", path)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays fragment sections onto destination.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.HTTP != (HTTPConfig{}) {
		dst.HTTP = src.HTTP
	}
	if src.Feed != (FeedConfig{}) {
		dst.Feed = src.Feed
	}
	if !isZero(src.Store) {
		dst.Store = src.Store
	}
	if src.Chat != (ChatConfig{}) {
		dst.Chat = src.Chat
	}
	if src.Notify.Discord != (DiscordConfig{}) {
		dst.Notify.Discord = src.Notify.Discord
	}
	if src.Notify.Telegram != (TelegramConfig{}) {
		dst.Notify.Telegram = src.Notify.Telegram
	}
	if src.Notify.Mattermost != (MattermostConfig{}) {
		dst.Notify.Mattermost = src.Notify.Mattermost
	}
	if !isZero(src.Notify.Webhook) {
		dst.Notify.Webhook = src.Notify.Webhook
	}
	if len(src.Rule) > 0 {
		dst.Rule = append(dst.Rule, src.Rule...)
	}
}

// isZero reports whether value equals its type zero value.
// Params: struct value that may hold slices or maps.
// Returns: true for zero value.
func isZero(value any) bool {
	return reflect.ValueOf(value).IsZero()
}

// applyDefaults fills unset fields with runtime defaults.
// Params: config pointer.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.PollIntervalSec == 0 {
		cfg.Service.PollIntervalSec = defaultPollIntervalSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}

	if strings.TrimSpace(cfg.Feed.URL) == "" {
		cfg.Feed.URL = defaultFeedURL
	}
	if cfg.Feed.TimeoutSec <= 0 {
		cfg.Feed.TimeoutSec = defaultFeedTimeoutSec
	}
	if cfg.Feed.MaxBodyBytes <= 0 {
		cfg.Feed.MaxBodyBytes = defaultFeedMaxBodyBytes
	}
	if strings.TrimSpace(cfg.Feed.UserAgent) == "" {
		cfg.Feed.UserAgent = defaultFeedUserAgent
	}

	cfg.Store.Backend = NormalizeName(cfg.Store.Backend)
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreBackendMemory
	}
	cfg.Store.NATS.URL = normalizeURLs(cfg.Store.NATS.URL)
	if len(cfg.Store.NATS.URL) == 0 {
		cfg.Store.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Store.NATS.Bucket) == "" {
		cfg.Store.NATS.Bucket = defaultNATSBucket
	}
	if strings.TrimSpace(cfg.Store.Redis.Addr) == "" {
		cfg.Store.Redis.Addr = defaultRedisAddr
	}
	if cfg.Store.Redis.KeyPrefix == "" {
		cfg.Store.Redis.KeyPrefix = defaultRedisKeyPrefix
	}

	cfg.Chat.Platform = NormalizeName(cfg.Chat.Platform)
	if cfg.Chat.Platform == "" {
		cfg.Chat.Platform = PlatformDiscord
	}

	fillNotifyRetryDefaults(&cfg.Notify.Discord.Retry)
	if cfg.Notify.Telegram.APIBase == "" {
		cfg.Notify.Telegram.APIBase = defaultTelegramAPIBase
	}
	fillNotifyRetryDefaults(&cfg.Notify.Telegram.Retry)
	if cfg.Notify.Mattermost.TimeoutSec <= 0 {
		cfg.Notify.Mattermost.TimeoutSec = defaultNotifyTimeoutSec
	}
	fillNotifyRetryDefaults(&cfg.Notify.Mattermost.Retry)
	if cfg.Notify.Webhook.Method == "" {
		cfg.Notify.Webhook.Method = "POST"
	}
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultNotifyTimeoutSec
	}
}

// fillNotifyRetryDefaults normalizes retry policy fields for one platform.
// Params: retry policy pointer.
// Returns: policy defaults applied in place.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry == nil {
		return
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 500
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 60000
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = defaultRetryAttempts
	}
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if cfg.Service.PollIntervalSec <= 0 {
		return errors.New("service.poll_interval_sec must be >0")
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	if err := validateHTTP(cfg.HTTP); err != nil {
		return err
	}
	if err := validateAbsoluteURL("feed.url", cfg.Feed.URL); err != nil {
		return err
	}
	if err := validateStore(cfg.Store); err != nil {
		return err
	}
	if err := validatePlatform(cfg.Chat.Platform, cfg.Notify); err != nil {
		return err
	}
	// Ping and embed each spend up to one retry budget inside a synchronous cycle.
	pollInterval := time.Duration(cfg.Service.PollIntervalSec) * time.Second
	if budget := PlatformRetry(cfg.Notify, cfg.Chat.Platform).Budget(); 2*budget >= pollInterval {
		return fmt.Errorf("notify.%s.retry backoff budget %s must stay below half of service.poll_interval_sec", cfg.Chat.Platform, budget)
	}
	if cfg.Notify.Webhook.Enabled {
		if err := validateAbsoluteURL("notify.webhook.url", cfg.Notify.Webhook.URL); err != nil {
			return err
		}
	}

	if len(cfg.Rule) > 0 && cfg.Store.Backend != StoreBackendMemory {
		return fmt.Errorf("[rule.<name>] seeds require store.backend=%q, got %q", StoreBackendMemory, cfg.Store.Backend)
	}
	ruleNames := make(map[string]struct{}, len(cfg.Rule))
	for i, rule := range cfg.Rule {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("rule[%d] %q: %w", i, rule.Name, err)
		}
		if _, exists := ruleNames[rule.Name]; exists {
			return fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		ruleNames[rule.Name] = struct{}{}
	}
	return nil
}

// validateHTTP checks endpoint paths.
// Params: HTTP config.
// Returns: path validation error.
func validateHTTP(cfg HTTPConfig) error {
	paths := map[string]string{
		"http.health_path":  cfg.HealthPath,
		"http.ready_path":   cfg.ReadyPath,
		"http.metrics_path": cfg.MetricsPath,
	}
	seen := make(map[string]string, len(paths))
	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := paths[key]
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/', got %q", key, path)
		}
		if other, ok := seen[path]; ok {
			return fmt.Errorf("%s duplicates %s (%q)", key, other, path)
		}
		seen[path] = key
	}
	return nil
}

// validateStore checks backend name and its required settings.
// Params: store config.
// Returns: store validation error.
func validateStore(cfg StoreConfig) error {
	switch cfg.Backend {
	case StoreBackendMemory:
	case StoreBackendNATS:
		for i, raw := range cfg.NATS.URL {
			if strings.TrimSpace(raw) == "" {
				return fmt.Errorf("store.nats.url[%d] is empty", i)
			}
		}
	case StoreBackendPostgres:
		if ResolveSecret(cfg.Postgres.DSN, cfg.Postgres.DSNEnv) == "" {
			return errors.New("store.postgres.dsn or store.postgres.dsn_env is required when store.backend=postgres")
		}
		if cfg.Postgres.MaxConns < 0 || cfg.Postgres.MaxIdle < 0 {
			return errors.New("store.postgres.max_conns and max_idle must be >=0")
		}
	case StoreBackendRedis:
		if cfg.Redis.DB < 0 {
			return errors.New("store.redis.db must be >=0")
		}
	default:
		return fmt.Errorf("store.backend has unsupported value %q (supported: %s)", cfg.Backend, strings.Join(storeBackends, ", "))
	}
	return nil
}

// validatePlatform checks selected chat platform credentials, retry, and templates.
// Params: normalized platform name and notify config.
// Returns: platform validation error.
func validatePlatform(platform string, cfg NotifyConfig) error {
	switch platform {
	case PlatformDiscord:
		if ResolveSecret(cfg.Discord.BotToken, cfg.Discord.BotTokenEnv) == "" {
			return errors.New("notify.discord.bot_token or bot_token_env is required when chat.platform=discord")
		}
	case PlatformTelegram:
		if ResolveSecret(cfg.Telegram.BotToken, cfg.Telegram.BotTokenEnv) == "" {
			return errors.New("notify.telegram.bot_token or bot_token_env is required when chat.platform=telegram")
		}
		if err := validateAbsoluteURL("notify.telegram.api_base", cfg.Telegram.APIBase); err != nil {
			return err
		}
	case PlatformMattermost:
		if err := validateAbsoluteURL("notify.mattermost.base_url", cfg.Mattermost.BaseURL); err != nil {
			return err
		}
		if ResolveSecret(cfg.Mattermost.BotToken, cfg.Mattermost.BotTokenEnv) == "" {
			return errors.New("notify.mattermost.bot_token or bot_token_env is required when chat.platform=mattermost")
		}
	default:
		return fmt.Errorf("chat.platform has unsupported value %q (supported: %s)", platform, strings.Join(platforms, ", "))
	}

	if err := validateRetry("notify."+platform+".retry", PlatformRetry(cfg, platform)); err != nil {
		return err
	}
	if body := PlatformTemplate(cfg, platform); strings.TrimSpace(body) != "" {
		if err := validateMessageTemplate("notify."+platform+".message_template", body); err != nil {
			return err
		}
	}
	return nil
}

// validateRetry checks retry policy fields.
// Params: config path prefix and policy.
// Returns: retry validation error.
func validateRetry(path string, retry NotifyRetry) error {
	switch NormalizeName(retry.Backoff) {
	case "exponential", "fixed":
	default:
		return fmt.Errorf("%s.backoff has unsupported value %q", path, retry.Backoff)
	}
	if retry.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >=0", path)
	}
	if retry.MaxMS < retry.InitialMS {
		return fmt.Errorf("%s.max_ms must be >= initial_ms", path)
	}
	return nil
}

// validateRule validates one seed rule.
// Params: one decoded rule.
// Returns: rule-level validation error.
func validateRule(rule RuleConfig) error {
	if strings.TrimSpace(rule.GuildID) == "" {
		return errors.New("guild_id is required")
	}
	if strings.TrimSpace(rule.Channel) == "" {
		return errors.New("channel is required")
	}
	if rule.MinPlayers != nil && *rule.MinPlayers < 0 {
		return errors.New("min_players must be >=0")
	}
	return nil
}

// validateAbsoluteURL checks value is an absolute http(s) URL.
// Params: config path and raw URL.
// Returns: URL validation error.
func validateAbsoluteURL(path, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s is required", path)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", path)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include host", path)
	}
	return nil
}

// normalizeURLs trims URL list and drops empty items.
// Params: raw URL list.
// Returns: normalized list.
func normalizeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateMessageTemplate checks template body parses with shared helpers.
// Params: config path and template body.
// Returns: parse error.
func validateMessageTemplate(path, body string) error {
	if _, err := templatefmt.ParseNotificationTemplate(path, strings.TrimSpace(body)); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	return nil
}
