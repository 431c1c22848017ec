package automod

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tidwall/gjson"

	"discord-automod-bot/internal/models"
)

// handleMemberAdd feeds membership-adds into the raid track. The account
// creation time comes out of the user ID snowflake, no extra API call.
func (s *Service) handleMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.GuildID == "" {
		return
	}
	if s.session.State.User != nil && m.User.ID == s.session.State.User.ID {
		return
	}

	occurredAt := m.JoinedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var createdAt time.Time
	if ts, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
		createdAt = ts
	}

	s.engine.OnJoin(context.Background(), models.JoinEvent{
		GuildID:          m.GuildID,
		UserID:           m.User.ID,
		OccurredAt:       occurredAt,
		AccountCreatedAt: createdAt,
	})
}

// handleMessageCreate feeds messages into the violation track.
func (s *Service) handleMessageCreate(sess *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if sess.State.User != nil && m.Author.ID == sess.State.User.ID {
		return
	}

	var roleIDs []string
	if m.Member != nil {
		roleIDs = m.Member.Roles
	}

	occurredAt := m.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	s.engine.OnMessage(context.Background(), models.MessageEvent{
		GuildID:           m.GuildID,
		UserID:            m.Author.ID,
		ChannelID:         m.ChannelID,
		MessageID:         m.ID,
		Content:           m.Content,
		MentionCount:      len(m.Mentions) + len(m.MentionRoles),
		RoleIDs:           roleIDs,
		ActorIsPrivileged: s.actorIsPrivileged(sess, m),
		OccurredAt:        occurredAt,
	})
}

// actorIsPrivileged reports whether the author holds message-management
// rights in the channel. Errors resolve to not-privileged so rules still
// apply.
func (s *Service) actorIsPrivileged(sess *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := sess.State.MessagePermissions(m.Message)
	if err != nil {
		perms, err = sess.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			return false
		}
	}
	return perms&discordgo.PermissionManageMessages != 0 ||
		perms&discordgo.PermissionAdministrator != 0
}

// Structural change events worth the log-only path.
var guildChangeEvents = map[string]string{
	"CHANNEL_CREATE":    "channel_create",
	"CHANNEL_DELETE":    "channel_delete",
	"CHANNEL_UPDATE":    "channel_update",
	"GUILD_ROLE_CREATE": "role_create",
	"GUILD_ROLE_DELETE": "role_delete",
	"GUILD_ROLE_UPDATE": "role_update",
}

// handleRawEvent peeks at raw gateway frames for role/channel changes.
// gjson keeps this off the full-unmarshal path; only two fields are read.
func (s *Service) handleRawEvent(_ *discordgo.Session, e *discordgo.Event) {
	changeType, ok := guildChangeEvents[e.Type]
	if !ok || len(e.RawData) == 0 {
		return
	}

	guildID := gjson.GetBytes(e.RawData, "guild_id").String()
	if guildID == "" {
		return
	}

	subjectID := gjson.GetBytes(e.RawData, "id").String()
	if subjectID == "" {
		subjectID = gjson.GetBytes(e.RawData, "role.id").String()
	}

	s.engine.OnRoleOrChannelChange(context.Background(), guildID, changeType, subjectID, e.Type)
}
