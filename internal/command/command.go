package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bsm/internal/clock"
	"bsm/internal/domain"
	"bsm/internal/feed"
	"bsm/internal/logging"
	"bsm/internal/store"

	"golang.org/x/time/rate"
)

// Subcommand names of the /bsm group.
const (
	Setup              = "setup"
	ListAlerts         = "listalerts"
	EditAlert          = "editalert"
	DeleteAlert        = "deletealert"
	ToggleBelowWarning = "togglebelowwarning"
	ListServers        = "listservers"
	Help               = "help"
)

// Option names shared by command registration and parsing.
const (
	OptAlertID         = "alert_id"
	OptAlertName       = "alert_name"
	OptAlertMap        = "alert_map"
	OptMinPlayers      = "min_players"
	OptChannel         = "channel"
	OptPingRole        = "ping_role"
	OptPlayersRequired = "players_required"
	OptName            = "name"
	OptMap             = "map"
	OptRegion          = "region"
	OptGamemode        = "gamemode"
)

// MaxReplyLength is the Discord message content limit.
const MaxReplyLength = 2000

const defaultCooldown = 2 * time.Second

const (
	replyNoPermission = "❌ You don't have permission to use this command. You need the **Manage Channels** permission."
	replyUnexpected   = "❌ An unexpected error occurred. Please try again later."
)

// Invocation is one parsed slash command call.
// Params: guild/user identity, subcommand, permission flag, and typed options.
// Returns: platform-neutral request for Handler.
type Invocation struct {
	GuildID           string
	UserID            string
	Command           string
	CanManageChannels bool
	Strings           map[string]string
	Ints              map[string]int64
}

// String returns trimmed string option.
func (inv Invocation) String(name string) (string, bool) {
	value, ok := inv.Strings[name]
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// Int returns integer option.
func (inv Invocation) Int(name string) (int64, bool) {
	value, ok := inv.Ints[name]
	return value, ok
}

// Reply is the response sent back to the invoking user.
type Reply struct {
	Content   string
	Ephemeral bool
}

// Recorder observes handled commands.
type Recorder interface {
	ObserveCommand(command, result string)
}

// Handler executes /bsm subcommands against rule store and server feed.
// Params: rule store, feed fetcher, clock for cooldowns, and logger.
// Returns: command handler; it never touches transition state.
type Handler struct {
	store    store.Store
	feed     feed.Fetcher
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder
	cooldown time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option customizes Handler.
type Option func(*Handler)

// WithRecorder attaches command observer.
func WithRecorder(recorder Recorder) Option {
	return func(h *Handler) { h.recorder = recorder }
}

// WithCooldown overrides per-user cooldown; zero disables it.
func WithCooldown(cooldown time.Duration) Option {
	return func(h *Handler) { h.cooldown = cooldown }
}

// NewHandler creates command handler.
// Params: store, feed, clock, logger, and options.
// Returns: handler with default 2s per-user cooldown.
func NewHandler(rules store.Store, servers feed.Fetcher, clk clock.Clock, logger *slog.Logger, opts ...Option) *Handler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	handler := &Handler{
		store:    rules,
		feed:     servers,
		clock:    clk,
		logger:   logger,
		cooldown: defaultCooldown,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// Handle checks permission and cooldown, then routes the subcommand.
// Params: context and invocation.
// Returns: ephemeral reply truncated to platform limit.
func (h *Handler) Handle(ctx context.Context, inv Invocation) Reply {
	content, result := h.handle(ctx, inv)
	if h.recorder != nil {
		h.recorder.ObserveCommand(inv.Command, result)
	}
	return Reply{Content: Truncate(content, MaxReplyLength), Ephemeral: true}
}

// handle returns reply text and result label.
func (h *Handler) handle(ctx context.Context, inv Invocation) (string, string) {
	if RequiresManageChannels(inv.Command) && !inv.CanManageChannels {
		return replyNoPermission, "forbidden"
	}
	if wait := h.reserve(inv.UserID); wait > 0 {
		return fmt.Sprintf("⏳ This command is on cooldown. Try again in **%.1f seconds**.", wait.Seconds()), "cooldown"
	}

	var (
		content string
		err     error
	)
	switch inv.Command {
	case Setup:
		content, err = h.setup(ctx, inv)
	case ListAlerts:
		content, err = h.listAlerts(ctx, inv)
	case EditAlert:
		content, err = h.editAlert(ctx, inv)
	case DeleteAlert:
		content, err = h.deleteAlert(ctx, inv)
	case ToggleBelowWarning:
		content, err = h.toggleBelowWarning(ctx, inv)
	case ListServers:
		content, err = h.listServers(ctx, inv)
	case Help:
		content = HelpText()
	default:
		err = fmt.Errorf("unknown command %q", inv.Command)
	}
	if err != nil {
		h.logger.Error("command failed", "command", inv.Command, "guild_id", inv.GuildID, "user_id", inv.UserID, "error", err.Error())
		return replyUnexpected, "error"
	}
	return content, "ok"
}

// RequiresManageChannels reports whether command mutates or reveals guild rules.
func RequiresManageChannels(command string) bool {
	return command != ListServers && command != Help
}

// reserve takes one cooldown token for user.
// Params: user ID.
// Returns: remaining wait when user is still cooling down.
func (h *Handler) reserve(userID string) time.Duration {
	if h.cooldown <= 0 || userID == "" {
		return 0
	}
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[userID]
	if !ok {
		h.pruneIdle(now)
		limiter = rate.NewLimiter(rate.Every(h.cooldown), 1)
		h.limiters[userID] = limiter
	}
	reservation := limiter.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	if wait > 0 {
		reservation.CancelAt(now)
	}
	return wait
}

// pruneIdle drops limiters whose bucket is full again.
func (h *Handler) pruneIdle(now time.Time) {
	if len(h.limiters) < 256 {
		return
	}
	for userID, limiter := range h.limiters {
		if limiter.TokensAt(now) >= 1 {
			delete(h.limiters, userID)
		}
	}
}

// setup creates rule from options.
func (h *Handler) setup(ctx context.Context, inv Invocation) (string, error) {
	channel, ok := inv.String(OptChannel)
	if !ok {
		return "❌ A channel is required.", nil
	}
	rule := domain.AlertRule{GuildID: inv.GuildID, TargetChannel: channel}
	rule.NameFilter, _ = inv.String(OptAlertName)
	rule.MapFilter, _ = inv.String(OptAlertMap)
	rule.PingTarget, _ = inv.String(OptPingRole)
	if minPlayers, ok := inv.Int(OptMinPlayers); ok {
		if minPlayers < 0 {
			return replyNegativeThreshold, nil
		}
		rule.MinPlayers = domain.IntPtr(int(minPlayers))
	}

	created, err := h.store.Create(ctx, rule)
	if err != nil {
		return "", fmt.Errorf("create rule: %w", err)
	}
	h.logger.Info("alert rule created", "rule_id", created.ID, "guild_id", created.GuildID)
	return formatSetup(created), nil
}

// listAlerts renders guild rules.
func (h *Handler) listAlerts(ctx context.Context, inv Invocation) (string, error) {
	rules, err := h.store.ListByGuild(ctx, inv.GuildID)
	if err != nil {
		return "", fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		return "No alerts are currently configured.", nil
	}
	return formatAlertList(rules), nil
}

// editAlert applies partial update to guild rule.
func (h *Handler) editAlert(ctx context.Context, inv Invocation) (string, error) {
	id, ok := inv.Int(OptAlertID)
	if !ok {
		return "❌ An alert ID is required.", nil
	}
	var patch domain.RulePatch
	if value, ok := inv.String(OptAlertName); ok {
		patch.NameFilter = domain.StringPtr(value)
	}
	if value, ok := inv.String(OptAlertMap); ok {
		patch.MapFilter = domain.StringPtr(value)
	}
	if value, ok := inv.Int(OptMinPlayers); ok {
		if value < 0 {
			return replyNegativeThreshold, nil
		}
		patch.MinPlayers = domain.IntPtr(int(value))
	}
	if value, ok := inv.String(OptChannel); ok {
		patch.TargetChannel = domain.StringPtr(value)
	}
	if value, ok := inv.String(OptPingRole); ok {
		patch.PingTarget = domain.StringPtr(value)
	}
	if patch.IsEmpty() {
		return fmt.Sprintf("Nothing to update for alert **%d**.", id), nil
	}

	if _, err := h.ownedRule(ctx, inv.GuildID, id); err != nil {
		return notFoundOr(id, err)
	}
	if _, err := h.store.Update(ctx, id, patch); err != nil {
		return notFoundOr(id, err)
	}
	h.logger.Info("alert rule updated", "rule_id", id, "guild_id", inv.GuildID, "fields", strings.Join(patch.Fields(), ","))
	return fmt.Sprintf("Alert **%d** has been updated.", id), nil
}

// deleteAlert removes guild rule.
func (h *Handler) deleteAlert(ctx context.Context, inv Invocation) (string, error) {
	id, ok := inv.Int(OptAlertID)
	if !ok {
		return "❌ An alert ID is required.", nil
	}
	if _, err := h.ownedRule(ctx, inv.GuildID, id); err != nil {
		return notFoundOr(id, err)
	}
	if err := h.store.Delete(ctx, id); err != nil {
		return notFoundOr(id, err)
	}
	h.logger.Info("alert rule deleted", "rule_id", id, "guild_id", inv.GuildID)
	return fmt.Sprintf("Alert **%d** has been deleted.", id), nil
}

// toggleBelowWarning flips below-threshold notifications of guild rule.
func (h *Handler) toggleBelowWarning(ctx context.Context, inv Invocation) (string, error) {
	id, ok := inv.Int(OptAlertID)
	if !ok {
		return "❌ An alert ID is required.", nil
	}
	rule, err := h.ownedRule(ctx, inv.GuildID, id)
	if err != nil {
		return notFoundOr(id, err)
	}
	updated, err := h.store.Update(ctx, id, domain.RulePatch{BelowWarningEnabled: domain.BoolPtr(!rule.BelowWarningEnabled)})
	if err != nil {
		return notFoundOr(id, err)
	}
	state := "disabled"
	if updated.BelowWarningEnabled {
		state = "enabled"
	}
	return fmt.Sprintf("Below threshold warnings for alert **%d** are now **%s**.", id, state), nil
}

// listServers fetches feed and renders matching servers.
func (h *Handler) listServers(ctx context.Context, inv Invocation) (string, error) {
	required, _ := inv.Int(OptPlayersRequired)
	query := feed.Query{PlayersRequired: int(required)}
	query.Name, _ = inv.String(OptName)
	query.Map, _ = inv.String(OptMap)
	query.Region, _ = inv.String(OptRegion)
	query.Gamemode, _ = inv.String(OptGamemode)

	servers, err := h.feed.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch servers: %w", err)
	}
	matches := feed.Filter(servers, query)
	if len(matches) == 0 {
		return "No servers match the specified criteria.", nil
	}
	return formatServerList(matches), nil
}

// ownedRule loads rule and hides rules of other guilds.
// Params: invoking guild and rule ID.
// Returns: rule or store.ErrNotFound.
func (h *Handler) ownedRule(ctx context.Context, guildID string, id int64) (domain.AlertRule, error) {
	rule, err := h.store.Get(ctx, id)
	if err != nil {
		return domain.AlertRule{}, err
	}
	if rule.GuildID != guildID {
		return domain.AlertRule{}, store.ErrNotFound
	}
	return rule, nil
}

// notFoundOr renders not-found reply or propagates other errors.
func notFoundOr(id int64, err error) (string, error) {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Alert **%s** not found.", strconv.FormatInt(id, 10)), nil
	}
	return "", err
}
