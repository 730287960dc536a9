package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/permanent"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// TelegramSender sends rendered HTML messages to Telegram chats.
// Params: bot client created from token and API base URL.
// Returns: Telegram platform sender.
type TelegramSender struct {
	client  *tgbot.Bot
	initErr error
}

// NewTelegramSender creates Telegram sender.
// Params: Telegram config with token and API base.
// Returns: sender; init errors are reported on first use.
func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	sender := &TelegramSender{}
	token := config.ResolveSecret(cfg.BotToken, cfg.BotTokenEnv)
	if token == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	botClient, err := tgbot.New(token,
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Platform returns sender platform name.
func (s *TelegramSender) Platform() string {
	return config.PlatformTelegram
}

// ResolveChannel checks chat with getChat.
// Params: numeric chat ID or @channel username.
// Returns: ErrChannelUnresolvable when bot cannot see the chat.
func (s *TelegramSender) ResolveChannel(ctx context.Context, channel string) error {
	if s.initErr != nil {
		return permanent.Mark(s.initErr)
	}
	if _, err := s.client.GetChat(ctx, &tgbot.GetChatParams{ChatID: normalizeChatID(channel)}); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

// Send posts ping text or rendered embed text.
// Params: message with ping or rendered Text.
// Returns: classified telegram error.
func (s *TelegramSender) Send(ctx context.Context, message Message) error {
	if s.initErr != nil {
		return permanent.Mark(s.initErr)
	}
	text := message.Text
	if message.IsPing() {
		text = html.EscapeString(FormatHandlePing(message.Ping))
	}
	if strings.TrimSpace(text) == "" {
		return permanent.Mark(fmt.Errorf("telegram message for %s is empty", message.Channel))
	}
	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    normalizeChatID(message.Channel),
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return classifyTelegramError(err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// FormatHandlePing renders mention for platforms addressing users by handle.
func FormatHandlePing(target string) string {
	if strings.HasPrefix(target, "@") {
		return target
	}
	return "@" + target
}

// normalizeChatID converts numeric chat IDs to int64 and keeps usernames as string.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// classifyTelegramError marks Bot API client errors.
// Params: go-telegram error.
// Returns: wrapped error.
func classifyTelegramError(err error) error {
	switch {
	case errors.Is(err, tgbot.ErrorForbidden), errors.Is(err, tgbot.ErrorNotFound):
		return permanent.Mark(fmt.Errorf("%w: telegram: %v", domain.ErrChannelUnresolvable, err))
	case errors.Is(err, tgbot.ErrorBadRequest), errors.Is(err, tgbot.ErrorUnauthorized):
		return permanent.Mark(fmt.Errorf("telegram: %w", err))
	default:
		return fmt.Errorf("telegram: %w", err)
	}
}
