package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/permanent"

	"github.com/bwmarrin/discordgo"
)

const (
	discordColorAlert   = 0x2ecc71
	discordColorWarning = 0xe74c3c
)

// DiscordAPI is the REST subset used for delivery.
// Params: channel IDs and message payloads.
// Returns: discordgo errors (RESTError carries HTTP status).
type DiscordAPI interface {
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	SendContent(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// DiscordSender posts native embeds and role pings through a bot session.
type DiscordSender struct {
	api DiscordAPI
}

// NewDiscordSender creates sender over bot REST API.
func NewDiscordSender(api DiscordAPI) *DiscordSender {
	return &DiscordSender{api: api}
}

// Platform returns sender platform name.
func (s *DiscordSender) Platform() string {
	return config.PlatformDiscord
}

// ResolveChannel looks channel up through bot cache or REST API.
// Params: channel snowflake.
// Returns: ErrChannelUnresolvable for unknown or non-text channels.
func (s *DiscordSender) ResolveChannel(ctx context.Context, channel string) error {
	resolved, err := s.api.Channel(ctx, channel)
	if err != nil {
		return classifyDiscordError(err)
	}
	if resolved == nil {
		return fmt.Errorf("%w: channel %s not found", domain.ErrChannelUnresolvable, channel)
	}
	switch resolved.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return nil
	default:
		return permanent.Mark(fmt.Errorf("%w: channel %s is not a text channel", domain.ErrChannelUnresolvable, channel))
	}
}

// Send posts ping content or embed.
// Params: message with ping or embed.
// Returns: classified discord error.
func (s *DiscordSender) Send(ctx context.Context, message Message) error {
	var err error
	if message.IsPing() {
		err = s.api.SendContent(ctx, message.Channel, FormatDiscordPing(message.Ping))
	} else if message.Embed != nil {
		err = s.api.SendEmbed(ctx, message.Channel, ToDiscordEmbed(*message.Embed))
	} else {
		return permanent.Mark(fmt.Errorf("discord message for %s has no payload", message.Channel))
	}
	if err != nil {
		return classifyDiscordError(err)
	}
	return nil
}

// FormatDiscordPing renders role mention.
func FormatDiscordPing(roleID string) string {
	return "<@&" + roleID + ">"
}

// ToDiscordEmbed converts platform-neutral embed.
// Params: domain embed.
// Returns: discordgo embed with mapped color and ordered fields.
func ToDiscordEmbed(embed domain.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       discordColor(embed.Color),
		Fields:      make([]*discordgo.MessageEmbedField, 0, len(embed.Fields)),
	}
	for _, field := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return out
}

func discordColor(color domain.EmbedColor) int {
	if color == domain.EmbedColorWarning {
		return discordColorWarning
	}
	return discordColorAlert
}

// classifyDiscordError maps REST status to unresolvable/permanent markers.
// Params: discordgo error.
// Returns: wrapped error.
func classifyDiscordError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return fmt.Errorf("discord request: %w", err)
	}
	status := restErr.Response.StatusCode
	switch status {
	case http.StatusForbidden, http.StatusNotFound:
		return permanent.FromStatus(status, fmt.Errorf("%w: discord status=%d: %v", domain.ErrChannelUnresolvable, status, err))
	default:
		return permanent.FromStatus(status, fmt.Errorf("discord status=%d: %w", status, err))
	}
}
