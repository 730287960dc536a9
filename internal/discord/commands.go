package discord

import (
	"strings"

	"bsm/internal/command"

	"github.com/bwmarrin/discordgo"
)

// GroupName is the top-level slash command.
const GroupName = "bsm"

// Commands returns /bsm definition with all subcommands.
func Commands() []*discordgo.ApplicationCommand {
	zero := 0.0
	minPlayers := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        command.OptMinPlayers,
			Description: description,
			MinValue:    &zero,
		}
	}
	alertID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        command.OptAlertID,
		Description: "ID of the alert",
		Required:    true,
	}
	channel := func(required bool, description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         command.OptChannel,
			Description:  description,
			Required:     required,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
		}
	}
	text := func(name, description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        name,
			Description: description,
		}
	}
	role := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        command.OptPingRole,
		Description: "Role to ping when the alert fires",
	}

	return []*discordgo.ApplicationCommand{{
		Name:        GroupName,
		Description: "BattleBit server monitor",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.Setup,
				Description: "Set up alerts for server name or map with a minimum player count",
				Options: []*discordgo.ApplicationCommandOption{
					channel(true, "Channel for notifications"),
					text(command.OptAlertName, "Server name to match"),
					text(command.OptAlertMap, "Map name to match"),
					minPlayers("Minimum players to trigger the alert"),
					role,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.ListAlerts,
				Description: "List all configured alerts",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.EditAlert,
				Description: "Edit an existing alert",
				Options: []*discordgo.ApplicationCommandOption{
					alertID,
					text(command.OptAlertName, "New server name"),
					text(command.OptAlertMap, "New map name"),
					minPlayers("New minimum players"),
					channel(false, "New channel for notifications"),
					role,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.DeleteAlert,
				Description: "Delete an alert configuration",
				Options:     []*discordgo.ApplicationCommandOption{alertID},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.ToggleBelowWarning,
				Description: "Enable or disable alerts when player count drops below the threshold",
				Options:     []*discordgo.ApplicationCommandOption{alertID},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.ListServers,
				Description: "List all servers matching specific parameters",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        command.OptPlayersRequired,
						Description: "Minimum players on the server",
						MinValue:    &zero,
					},
					text(command.OptName, "Server name contains"),
					text(command.OptMap, "Map name"),
					text(command.OptRegion, "Region"),
					text(command.OptGamemode, "Gamemode"),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        command.Help,
				Description: "Get help and instructions for using the bot",
			},
		},
	}}
}

// ParseInvocation converts /bsm interaction into command invocation.
// Params: raw interaction.
// Returns: invocation and false for foreign or non-command interactions.
func ParseInvocation(interaction *discordgo.Interaction) (command.Invocation, bool) {
	if interaction == nil || interaction.Type != discordgo.InteractionApplicationCommand {
		return command.Invocation{}, false
	}
	data, ok := interaction.Data.(discordgo.ApplicationCommandInteractionData)
	if !ok || !strings.EqualFold(data.Name, GroupName) || len(data.Options) == 0 {
		return command.Invocation{}, false
	}
	sub := data.Options[0]
	if sub == nil || sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return command.Invocation{}, false
	}

	inv := command.Invocation{
		GuildID: interaction.GuildID,
		Command: strings.ToLower(sub.Name),
		Strings: make(map[string]string),
		Ints:    make(map[string]int64),
	}
	if interaction.Member != nil {
		inv.CanManageChannels = interaction.Member.Permissions&discordgo.PermissionManageChannels != 0
		if interaction.Member.User != nil {
			inv.UserID = interaction.Member.User.ID
		}
	} else if interaction.User != nil {
		inv.UserID = interaction.User.ID
	}

	for _, option := range sub.Options {
		if option == nil {
			continue
		}
		switch value := option.Value.(type) {
		case string:
			inv.Strings[option.Name] = value
		case float64:
			inv.Ints[option.Name] = int64(value)
		case int64:
			inv.Ints[option.Name] = value
		case int:
			inv.Ints[option.Name] = int64(value)
		}
	}
	return inv, true
}
