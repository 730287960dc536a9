package command

import (
	"fmt"
	"strconv"
	"strings"

	"bsm/internal/domain"
)

const replyNegativeThreshold = "❌ Minimum players must be zero or greater."

const commandList = "`/BSM Setup` - Set up alerts for server name or map with a minimum player count.\n" +
	"`/BSM ListAlerts` - List all configured alerts.\n" +
	"`/BSM EditAlert` - Edit an existing alert.\n" +
	"`/BSM DeleteAlert` - Delete an alert configuration.\n" +
	"`/BSM ToggleBelowWarning` - Enable or disable alerts when player count drops below the threshold.\n" +
	"`/BSM ListServers` - List all servers matching specific parameters.\n" +
	"`/BSM Help` - Get help and instructions for using the bot.\n\n" +
	"**Example:**\n" +
	"`/BSM Setup alert_name: Elite Soldiers min_players: 50 channel: #alerts ping_role: @Role`\n" +
	"`/BSM Setup alert_map: Wakistan min_players: 100 channel: #alerts ping_role: @Role`\n\n" +
	"You can also combine both server name and map alerts in one command!"

const intro = "I can monitor BattleBit servers and send alerts when specific conditions are met.\n\n"

// HelpText returns /bsm help reply.
func HelpText() string {
	return "**BattleBit Server Monitor Help**\n\n" +
		intro +
		"**Commands:**\n" +
		commandList + "\n\n" +
		"If you need help, feel free to ask!"
}

// WelcomeText returns greeting posted when bot joins a guild.
// Params: guild display name.
// Returns: welcome message.
func WelcomeText(guildName string) string {
	return fmt.Sprintf("🎉 **Thanks for adding me to %s!** 🎉\n\n", guildName) +
		intro +
		"**To get started, use the following commands:**\n" +
		commandList
}

// Truncate cuts text to limit runes, marking the cut with an ellipsis.
// Params: text and rune limit.
// Returns: text that fits the limit.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func formatSetup(rule domain.AlertRule) string {
	return "Setup complete! Monitoring for:\n" +
		"Server Name: " + orNotSet(rule.NameFilter) + "\n" +
		"Map: " + orNotSet(rule.MapFilter) + "\n" +
		"Minimum Players: " + thresholdLabel(rule) + "\n" +
		"Notifications will be sent to: " + channelMention(rule.TargetChannel) + "\n" +
		"Ping Role: " + roleMentionOrNotSet(rule.PingTarget)
}

func formatAlertList(rules []domain.AlertRule) string {
	var b strings.Builder
	b.WriteString("**Configured Alerts:**\n")
	for _, rule := range rules {
		fmt.Fprintf(&b, "**Alert ID:** %d\n", rule.ID)
		b.WriteString("Server Name: " + orNotSet(rule.NameFilter) + "\n")
		b.WriteString("Map: " + orNotSet(rule.MapFilter) + "\n")
		b.WriteString("Minimum Players: " + thresholdLabel(rule) + "\n")
		b.WriteString("Channel: " + channelMention(rule.TargetChannel) + "\n")
		b.WriteString("Ping Role: " + roleMentionOrNotSet(rule.PingTarget) + "\n\n")
	}
	return b.String()
}

func formatServerList(servers []domain.ServerRecord) string {
	var b strings.Builder
	b.WriteString("**Matching Servers:**\n")
	for _, server := range servers {
		b.WriteString("**Server:** " + server.Name + "\n")
		b.WriteString("Map: " + server.Map + "\n")
		b.WriteString("Gamemode: " + server.Gamemode + "\n")
		b.WriteString("Region: " + server.Region + "\n")
		b.WriteString("Players: " + server.PlayersLabel() + "\n\n")
	}
	return b.String()
}

func orNotSet(value string) string {
	if value == "" {
		return "Not set"
	}
	return value
}

func thresholdLabel(rule domain.AlertRule) string {
	threshold, ok := rule.Threshold()
	if !ok {
		return "Not set"
	}
	return strconv.Itoa(threshold)
}

func channelMention(channelID string) string {
	if channelID == "" {
		return "Not set"
	}
	return "<#" + channelID + ">"
}

func roleMentionOrNotSet(roleID string) string {
	if roleID == "" {
		return "Not set"
	}
	return "<@&" + roleID + ">"
}
