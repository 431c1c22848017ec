package commands

import (
	"github.com/bwmarrin/discordgo"
)

var adminPerms = int64(discordgo.PermissionAdministrator)

// AutoModCmd is the base /automod command for configuring enforcement.
var AutoModCmd = &discordgo.ApplicationCommand{
	Name:                     "automod",
	Description:              "Configure the AutoMod protection system",
	DefaultMemberPermissions: &adminPerms,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "enable",
			Description: "Enable AutoMod for this server",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "disable",
			Description: "Disable AutoMod for this server",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "status",
			Description: "View the current AutoMod configuration",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "antiraid",
			Description: "Configure raid detection",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Turn raid detection on or off",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "maxjoins",
					Description: "Max joins per minute before a raid is declared (default: 10)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "Response when a raid is detected (default: kick)",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Kick Joiner", Value: "kick"},
						{Name: "Ban Joiner", Value: "ban"},
						{Name: "Server Lockdown", Value: "lockdown"},
					},
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "rules",
			Description: "Toggle message content rules",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "rule",
					Description: "Which rule to toggle",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Anti-Spam", Value: "spam"},
						{Name: "Anti-Link", Value: "link"},
						{Name: "Anti-Caps", Value: "caps"},
						{Name: "Anti-Mention", Value: "mention"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Turn the rule on or off",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "logchannel",
			Description: "Set the channel for AutoMod audit logs",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to receive audit embeds",
					Required:    true,
				},
			},
		},
	},
}

// WhitelistCmd manages enforcement exemptions.
var WhitelistCmd = &discordgo.ApplicationCommand{
	Name:                     "automod-whitelist",
	Description:              "Manage AutoMod whitelist (exempt users and roles)",
	DefaultMemberPermissions: &adminPerms,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add-user",
			Description: "Exempt a user from enforcement",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to whitelist",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add-role",
			Description: "Exempt a role from enforcement",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to whitelist",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "remove",
			Description: "Remove a user or role from the whitelist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "User or role ID to remove",
					Required:    true,
				},
			},
		},
	},
}

// Commands is everything registered on startup.
var Commands = []*discordgo.ApplicationCommand{
	AutoModCmd,
	WhitelistCmd,
}
