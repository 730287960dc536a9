package engine

import (
	"fmt"

	"bsm/internal/domain"
)

// BuildEvent assembles notification event with its embed for one crossing.
// Params: rule, match kind, crossing kind, and live server record.
// Returns: event ready for delivery.
func BuildEvent(rule domain.AlertRule, match domain.MatchKind, kind domain.EventKind, server domain.ServerRecord) domain.Event {
	key := server.Name
	if match == domain.MatchKindMap {
		key = server.Map
	}
	return domain.Event{
		RuleID:   rule.ID,
		GuildID:  rule.GuildID,
		Kind:     kind,
		Match:    match,
		MatchKey: key,
		Channel:  rule.TargetChannel,
		Ping:     rule.PingTarget,
		Server:   server,
		Embed:    buildEmbed(match, kind, server),
	}
}

// buildEmbed renders the rich message body for one crossing.
// Params: match kind, crossing kind, and server record.
// Returns: embed with ordered fields.
func buildEmbed(match domain.MatchKind, kind domain.EventKind, server domain.ServerRecord) domain.Embed {
	players := server.PlayersLabel()
	switch {
	case match == domain.MatchKindName && kind == domain.EventKindEntered:
		return domain.Embed{
			Title:       "🚨 **Server Alert** 🚨",
			Description: fmt.Sprintf("**Server:** %s", server.Name),
			Color:       domain.EmbedColorAlert,
			Fields: []domain.EmbedField{
				{Name: "Map", Value: server.Map, Inline: true},
				{Name: "Gamemode", Value: server.Gamemode, Inline: true},
				{Name: "Players", Value: players, Inline: true},
				{Name: "Region", Value: server.Region, Inline: true},
			},
		}
	case match == domain.MatchKindName:
		return domain.Embed{
			Title:       "🔴 **Server Alert** 🔴",
			Description: fmt.Sprintf("**Server:** %s is now below the minimum player count.", server.Name),
			Color:       domain.EmbedColorWarning,
			Fields: []domain.EmbedField{
				{Name: "Players", Value: players, Inline: false},
			},
		}
	case kind == domain.EventKindEntered:
		return domain.Embed{
			Title:       "🚨 **Map Alert** 🚨",
			Description: fmt.Sprintf("**Map:** %s", server.Map),
			Color:       domain.EmbedColorAlert,
			Fields: []domain.EmbedField{
				{Name: "Server", Value: server.Name, Inline: true},
				{Name: "Gamemode", Value: server.Gamemode, Inline: true},
				{Name: "Players", Value: players, Inline: true},
				{Name: "Region", Value: server.Region, Inline: true},
			},
		}
	default:
		return domain.Embed{
			Title:       "🔴 **Map Alert** 🔴",
			Description: fmt.Sprintf("**Map:** %s is now below the minimum player count.", server.Map),
			Color:       domain.EmbedColorWarning,
			Fields: []domain.EmbedField{
				{Name: "Server", Value: server.Name, Inline: false},
				{Name: "Players", Value: players, Inline: false},
			},
		}
	}
}
