package provider

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"discord-automod-bot/internal/automod/executor"
)

// Discord adapts a discordgo session to the executor's moderation provider
// and channel lister. Every call threads the caller's context through so
// the executor's per-call timeout holds.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (d *Discord) SetChannelSendPermission(ctx context.Context, channelID, roleID string, allowed bool) error {
	var allow, deny int64
	if allowed {
		allow = discordgo.PermissionSendMessages
	} else {
		deny = discordgo.PermissionSendMessages
	}
	return d.session.ChannelPermissionSet(channelID, roleID,
		discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
}

func (d *Discord) TextChannels(ctx context.Context, guildID string) ([]executor.Channel, error) {
	chans, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	out := make([]executor.Channel, 0, len(chans))
	for _, ch := range chans {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, executor.Channel{ID: ch.ID, Name: ch.Name})
	}
	return out, nil
}
