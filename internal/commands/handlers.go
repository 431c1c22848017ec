package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-automod-bot/internal/automod"
	"discord-automod-bot/internal/database"
	"discord-automod-bot/internal/models"
)

// Handler routes configuration interactions. Every write goes through the
// database and then invalidates the policy cache so the engine sees the new
// snapshot on the next event.
type Handler struct {
	DB      *database.Database
	AutoMod *automod.Service
	Logger  *zap.Logger
}

func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	var reply string
	var err error

	switch data.Name {
	case "automod":
		reply, err = h.handleAutoMod(i.GuildID, data)
	case "automod-whitelist":
		reply, err = h.handleWhitelist(i.GuildID, i, data)
	default:
		return
	}

	if err != nil {
		h.Logger.Error("command failed",
			zap.String("command", data.Name),
			zap.String("guild_id", i.GuildID),
			zap.Error(err))
		reply = "❌ Something went wrong applying that change."
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (h *Handler) handleAutoMod(guildID string, data discordgo.ApplicationCommandInteractionData) (string, error) {
	ctx := context.Background()
	sub := data.Options[0]

	switch sub.Name {
	case "enable":
		if err := h.DB.SetEnabled(ctx, guildID, true); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return "✅ AutoMod enabled.", nil

	case "disable":
		if err := h.DB.SetEnabled(ctx, guildID, false); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return "✅ AutoMod disabled.", nil

	case "status":
		cfg, err := h.DB.GetPolicyConfig(ctx, guildID)
		if err != nil {
			return "", err
		}
		return statusSummary(cfg), nil

	case "antiraid":
		cfg, err := h.DB.GetPolicyConfig(ctx, guildID)
		if err != nil {
			return "", err
		}
		for _, opt := range sub.Options {
			switch opt.Name {
			case "enabled":
				cfg.AntiRaid = opt.BoolValue()
			case "maxjoins":
				cfg.MaxJoinsPerMinute = int(opt.IntValue())
			case "action":
				cfg.RaidAction = opt.StringValue()
			}
		}
		if err := h.DB.UpsertPolicyConfig(ctx, cfg); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ Anti-raid updated: enabled=%v, maxjoins=%d, action=%s",
			cfg.AntiRaid, cfg.MaxJoinsPerMinute, cfg.RaidAction), nil

	case "rules":
		cfg, err := h.DB.GetPolicyConfig(ctx, guildID)
		if err != nil {
			return "", err
		}
		var rule string
		var enabled bool
		for _, opt := range sub.Options {
			switch opt.Name {
			case "rule":
				rule = opt.StringValue()
			case "enabled":
				enabled = opt.BoolValue()
			}
		}
		switch rule {
		case "spam":
			cfg.AntiSpam = enabled
		case "link":
			cfg.AntiLink = enabled
		case "caps":
			cfg.AntiCaps = enabled
		case "mention":
			cfg.AntiMention = enabled
		}
		if err := h.DB.UpsertPolicyConfig(ctx, cfg); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ Rule %s set to %v.", rule, enabled), nil

	case "logchannel":
		channel := sub.Options[0].ChannelValue(nil)
		if channel == nil {
			return "❌ Channel not found.", nil
		}
		if err := h.DB.SetLogChannel(ctx, guildID, channel.ID); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ Audit logs will go to <#%s>.", channel.ID), nil
	}

	return "❌ Unknown subcommand.", nil
}

func (h *Handler) handleWhitelist(guildID string, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (string, error) {
	ctx := context.Background()
	sub := data.Options[0]

	addedBy := ""
	if i.Member != nil && i.Member.User != nil {
		addedBy = i.Member.User.ID
	}

	switch sub.Name {
	case "add-user":
		user := sub.Options[0].UserValue(nil)
		if user == nil {
			return "❌ User not found.", nil
		}
		if err := h.DB.AddWhitelist(ctx, guildID, user.ID, "user", addedBy); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ <@%s> is now exempt from enforcement.", user.ID), nil

	case "add-role":
		role := sub.Options[0].RoleValue(nil, guildID)
		if role == nil {
			return "❌ Role not found.", nil
		}
		if err := h.DB.AddWhitelist(ctx, guildID, role.ID, "role", addedBy); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ <@&%s> is now exempt from enforcement.", role.ID), nil

	case "remove":
		targetID := sub.Options[0].StringValue()
		if err := h.DB.RemoveWhitelist(ctx, guildID, targetID); err != nil {
			return "", err
		}
		h.AutoMod.Invalidate(guildID)
		return fmt.Sprintf("✅ Removed `%s` from the whitelist.", targetID), nil
	}

	return "❌ Unknown subcommand.", nil
}

func statusSummary(cfg *models.GuildPolicyConfig) string {
	onOff := func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	}
	return fmt.Sprintf(
		"🛡️ **AutoMod Status**\n"+
			"Enabled: **%s**\n"+
			"Anti-Raid: **%s** (max %d joins/min, action: %s)\n"+
			"Anti-Spam: **%s** | Anti-Link: **%s** | Anti-Caps: **%s** | Anti-Mention: **%s**\n"+
			"Whitelisted: %d users, %d roles",
		onOff(cfg.Enabled),
		onOff(cfg.AntiRaid), cfg.MaxJoinsPerMinute, models.GetRaidActionDisplayName(cfg.RaidAction),
		onOff(cfg.AntiSpam), onOff(cfg.AntiLink), onOff(cfg.AntiCaps), onOff(cfg.AntiMention),
		len(cfg.WhitelistUserIDs), len(cfg.WhitelistRoleIDs))
}
