package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bsm/internal/command"
	"bsm/internal/config"
	"bsm/internal/logging"

	"github.com/bwmarrin/discordgo"
)

const interactionTimeout = 10 * time.Second

// CommandHandler executes parsed slash commands.
type CommandHandler interface {
	Handle(ctx context.Context, inv command.Invocation) command.Reply
}

// Bot owns Discord gateway session, slash commands, and REST delivery.
// Params: bot token, command handler, and logger.
// Returns: gateway client that also implements notify.DiscordAPI.
type Bot struct {
	session  *discordgo.Session
	handler  CommandHandler
	logger   *slog.Logger
	guildID  string
	baseCtx  context.Context
	cancel   context.CancelFunc
	ready    chan struct{}
	once     sync.Once
	mu       sync.Mutex
	existing map[string]struct{}
	removers []func()
}

// New creates bot session without connecting.
// Params: Discord settings, command handler, and logger.
// Returns: bot or session setup error.
func New(cfg config.DiscordConfig, handler CommandHandler, logger *slog.Logger) (*Bot, error) {
	token := config.ResolveSecret(cfg.BotToken, cfg.BotTokenEnv)
	if token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		session:  session,
		handler:  handler,
		logger:   logger,
		guildID:  cfg.CommandGuildID,
		baseCtx:  ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		existing: make(map[string]struct{}),
	}
	bot.removers = append(bot.removers,
		session.AddHandler(bot.onReady),
		session.AddHandler(bot.onGuildCreate),
		session.AddHandler(bot.onInteraction),
	)
	return bot, nil
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Ready is closed once the gateway reported ready and commands are registered.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// Close disconnects gateway and cancels in-flight interactions.
func (b *Bot) Close() error {
	b.cancel()
	for _, remove := range b.removers {
		remove()
	}
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

// Channel looks channel up in state cache, then REST.
func (b *Bot) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if b.session.State != nil {
		if channel, err := b.session.State.Channel(channelID); err == nil {
			return channel, nil
		}
	}
	return b.session.Channel(channelID, discordgo.WithContext(ctx))
}

// SendContent posts plain message.
func (b *Bot) SendContent(ctx context.Context, channelID, content string) error {
	_, err := b.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// SendEmbed posts one embed.
func (b *Bot) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

// onReady registers slash commands and releases the scheduler.
func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.mu.Lock()
	for _, guild := range event.Guilds {
		b.existing[guild.ID] = struct{}{}
	}
	b.mu.Unlock()

	if _, err := session.ApplicationCommandBulkOverwrite(event.User.ID, b.guildID, Commands()); err != nil {
		b.logger.Error("slash command registration failed", "error", err.Error())
	} else {
		b.logger.Info("slash commands registered", "guild_id", b.guildID)
	}
	b.logger.Info("discord gateway ready", "user", event.User.Username, "guilds", len(event.Guilds))
	b.once.Do(func() { close(b.ready) })
}

// onGuildCreate greets guilds joined after startup.
func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	b.mu.Lock()
	_, known := b.existing[event.ID]
	b.existing[event.ID] = struct{}{}
	b.mu.Unlock()
	if known {
		return
	}

	selfID := ""
	if session.State != nil && session.State.User != nil {
		selfID = session.State.User.ID
	}
	channelID := WelcomeChannel(event.Channels, func(channel *discordgo.Channel) bool {
		perms, err := session.UserChannelPermissions(selfID, channel.ID)
		return err == nil && perms&discordgo.PermissionSendMessages != 0
	})
	if channelID == "" {
		b.logger.Warn("no writable channel for welcome message", "guild_id", event.ID)
		return
	}
	ctx, cancel := context.WithTimeout(b.baseCtx, interactionTimeout)
	defer cancel()
	if err := b.SendContent(ctx, channelID, command.WelcomeText(event.Name)); err != nil {
		b.logger.Error("welcome message failed", "guild_id", event.ID, "channel", channelID, "error", err.Error())
		return
	}
	b.logger.Info("joined guild", "guild_id", event.ID, "name", event.Name)
}

// onInteraction routes /bsm invocations to command handler.
func (b *Bot) onInteraction(session *discordgo.Session, event *discordgo.InteractionCreate) {
	inv, ok := ParseInvocation(event.Interaction)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(b.baseCtx, interactionTimeout)
	defer cancel()
	reply := b.handler.Handle(ctx, inv)

	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Error("interaction response failed", "command", inv.Command, "guild_id", inv.GuildID, "error", err.Error())
	}
}

// WelcomeChannel picks first text channel by position the bot can write to.
// Params: guild channels and send-permission check.
// Returns: channel ID or empty string.
func WelcomeChannel(channels []*discordgo.Channel, canSend func(*discordgo.Channel) bool) string {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel != nil && channel.Type == discordgo.ChannelTypeGuildText {
			text = append(text, channel)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	for _, channel := range text {
		if canSend(channel) {
			return channel.ID
		}
	}
	return ""
}
