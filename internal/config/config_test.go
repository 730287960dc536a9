package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const mattermostPlatform = `[chat]
platform = "mattermost"

[notify.mattermost]
base_url = "http://127.0.0.1:8065"
bot_token = "token"`

func TestLoadSnapshotAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, `[notify.discord]
bot_token = "discord-token"`)

	if cfg.Service.Name != "bsm" || cfg.Service.PollIntervalSec != 60 {
		t.Fatalf("unexpected service defaults: %+v", cfg.Service)
	}
	if cfg.Feed.URL != defaultFeedURL || cfg.Feed.TimeoutSec != 15 {
		t.Fatalf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.Store.Backend != StoreBackendMemory || cfg.Chat.Platform != PlatformDiscord {
		t.Fatalf("unexpected backend/platform: %q/%q", cfg.Store.Backend, cfg.Chat.Platform)
	}
	if cfg.HTTP.MetricsPath != "/metrics" || cfg.HTTP.ReadyPath != "/readyz" {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if !cfg.Log.Console.Enabled || cfg.Log.Console.Format != "line" {
		t.Fatalf("expected console log default, got %+v", cfg.Log.Console)
	}
	if cfg.Notify.Discord.Retry.Backoff != "exponential" || cfg.Notify.Discord.Retry.InitialMS != 500 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Notify.Discord.Retry)
	}
	if cfg.Notify.Discord.Retry.MaxAttempts != 3 {
		t.Fatalf("expected bounded retry attempts, got %d", cfg.Notify.Discord.Retry.MaxAttempts)
	}
}

func TestLoadSnapshotBoundsEnabledRetry(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, `[notify.discord]
bot_token = "discord-token"

[notify.discord.retry]
enabled = true`)

	retry := cfg.Notify.Discord.Retry
	if retry.MaxAttempts != 3 || retry.Attempts() != 3 {
		t.Fatalf("expected 3 attempts, got %+v", retry)
	}
	if got := retry.Budget(); got != 1500*time.Millisecond {
		t.Fatalf("unexpected retry budget %s", got)
	}
}

func TestNotifyRetryBudget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		retry NotifyRetry
		want  time.Duration
	}{
		{name: "disabled", retry: NotifyRetry{MaxAttempts: 10, InitialMS: 1000, MaxMS: 1000}, want: 0},
		{name: "fixed", retry: NotifyRetry{Enabled: true, Backoff: "fixed", MaxAttempts: 4, InitialMS: 200, MaxMS: 200}, want: 600 * time.Millisecond},
		{name: "exponential capped", retry: NotifyRetry{Enabled: true, Backoff: "exponential", MaxAttempts: 5, InitialMS: 100, MaxMS: 300}, want: 900 * time.Millisecond},
		{name: "unset attempts", retry: NotifyRetry{Enabled: true, Backoff: "fixed", InitialMS: 100, MaxMS: 100}, want: 200 * time.Millisecond},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.retry.Budget(); got != tc.want {
				t.Fatalf("budget=%s want %s", got, tc.want)
			}
		})
	}
}

func TestLoadSnapshotSeedRules(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, joinSections(mattermostPlatform, `[rule.elite]
guild_id = "team-1"
name_filter = "Elite"
min_players = 50
channel = "town-square"
ping = "here"
below_warning = true

[rule.azagor]
guild_id = "team-1"
map_filter = "Azagor"
channel = "town-square"`))

	if len(cfg.Rule) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.Rule))
	}
	if cfg.Rule[0].Name != "azagor" || cfg.Rule[1].Name != "elite" {
		t.Fatalf("expected rules sorted by name, got %q/%q", cfg.Rule[0].Name, cfg.Rule[1].Name)
	}
	if cfg.Rule[0].MinPlayers != nil {
		t.Fatalf("expected unset threshold to stay nil")
	}
	if cfg.Rule[1].MinPlayers == nil || *cfg.Rule[1].MinPlayers != 50 || !cfg.Rule[1].BelowWarning {
		t.Fatalf("unexpected elite rule: %+v", cfg.Rule[1])
	}
}

func TestLoadSnapshotValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing discord token",
			body: `[chat]
platform = "discord"`,
			want: "notify.discord.bot_token",
		},
		{
			name: "unknown platform",
			body: `[chat]
platform = "irc"`,
			want: "chat.platform has unsupported value",
		},
		{
			name: "unknown backend",
			body: joinSections(mattermostPlatform, `[store]
backend = "sqlite"`),
			want: "store.backend has unsupported value",
		},
		{
			name: "postgres without dsn",
			body: joinSections(mattermostPlatform, `[store]
backend = "postgres"`),
			want: "store.postgres.dsn",
		},
		{
			name: "negative poll interval",
			body: joinSections(mattermostPlatform, `[service]
poll_interval_sec = -5`),
			want: "service.poll_interval_sec",
		},
		{
			name: "negative threshold",
			body: joinSections(mattermostPlatform, `[rule.bad]
guild_id = "g"
channel = "c"
min_players = -1`),
			want: "min_players must be >=0",
		},
		{
			name: "seed rules with durable backend",
			body: joinSections(mattermostPlatform, `[store]
backend = "redis"

[rule.r]
guild_id = "g"
channel = "c"`),
			want: "seeds require store.backend",
		},
		{
			name: "bad template",
			body: joinSections(`[chat]
platform = "telegram"

[notify.telegram]
bot_token = "t"
message_template = "{{ .Embed.Title "`),
			want: "notify.telegram.message_template is invalid",
		},
		{
			name: "duplicate http paths",
			body: joinSections(mattermostPlatform, `[http]
health_path = "/x"
ready_path = "/x"`),
			want: "duplicates",
		},
		{
			name: "webhook without url",
			body: joinSections(mattermostPlatform, `[notify.webhook]
enabled = true`),
			want: "notify.webhook.url is required",
		},
		{
			name: "retry budget exceeds poll interval",
			body: joinSections(mattermostPlatform, `[service]
poll_interval_sec = 5

[notify.mattermost.retry]
enabled = true
initial_ms = 1000
max_attempts = 5`),
			want: "notify.mattermost.retry backoff budget",
		},
		{
			name: "negative retry attempts",
			body: joinSections(mattermostPlatform, `[notify.mattermost.retry]
max_attempts = -1`),
			want: "max_attempts must be >=0",
		},
		{
			name: "legacy rule array",
			body: joinSections(mattermostPlatform, `[[rule]]
guild_id = "g"`),
			want: "legacy [[rule]] format",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := loadSnapshotErr(t, tc.body)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadSnapshotTokenFromEnv(t *testing.T) {
	t.Setenv("BSM_TEST_DISCORD_TOKEN", "from-env")

	cfg := mustLoadSnapshot(t, `[notify.discord]
bot_token_env = "BSM_TEST_DISCORD_TOKEN"`)
	if got := ResolveSecret(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.BotTokenEnv); got != "from-env" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestLoadSnapshotFromDirMergesFragments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfigFile(t, filepath.Join(dir, "00-base.toml"), joinSections(mattermostPlatform, `[service]
poll_interval_sec = 30`))
	writeConfigFile(t, filepath.Join(dir, "10-rules.toml"), `[rule.one]
guild_id = "g"
channel = "c"`)
	writeConfigFile(t, filepath.Join(dir, "20-rules.toml"), `[rule.two]
guild_id = "g"
channel = "c"`)
	writeConfigFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	cfg, err := LoadSnapshot(ConfigSource{Dir: dir})
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if cfg.Service.PollIntervalSec != 30 || cfg.Chat.Platform != PlatformMattermost {
		t.Fatalf("base fragment not applied: %+v %+v", cfg.Service, cfg.Chat)
	}
	if len(cfg.Rule) != 2 {
		t.Fatalf("expected merged rules, got %d", len(cfg.Rule))
	}

	writeConfigFile(t, filepath.Join(dir, "30-dup.toml"), `[rule.one]
guild_id = "g"
channel = "c"`)
	if _, err := LoadSnapshot(ConfigSource{Dir: dir}); err == nil || !strings.Contains(err.Error(), "duplicate rule name") {
		t.Fatalf("expected duplicate rule error, got %v", err)
	}
}

func TestFromCLI(t *testing.T) {
	t.Parallel()

	if _, err := FromCLI("", ""); err == nil {
		t.Fatalf("expected missing source error")
	}
	if _, err := FromCLI("a.toml", "dir"); err == nil {
		t.Fatalf("expected conflicting source error")
	}
	src, err := FromCLI(" a.toml ", "")
	if err != nil || src.File != "a.toml" || src.WatchPath() != "a.toml" {
		t.Fatalf("unexpected source %+v err=%v", src, err)
	}
}

func mustLoadSnapshot(t *testing.T, body string) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfigFile(t, path, body)
	cfg, err := LoadSnapshot(ConfigSource{File: path})
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return cfg
}

func loadSnapshotErr(t *testing.T, body string) error {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfigFile(t, path, body)
	_, err := LoadSnapshot(ConfigSource{File: path})
	return err
}

func writeConfigFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func joinSections(sections ...string) string {
	return strings.Join(sections, "\n\n")
}
