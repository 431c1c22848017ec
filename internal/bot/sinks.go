package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"discord-automod-bot/internal/automod/audit"
	"discord-automod-bot/internal/redis"
	"discord-automod-bot/internal/settings"
)

// LogChannelSink posts audit records as embeds to the guild's configured
// log channel. Runs on the emitter worker, so the REST call is off the
// evaluation hot path. Failures are logged and dropped.
type LogChannelSink struct {
	Session  *discordgo.Session
	Resolver *settings.Resolver
	Logger   *zap.Logger
}

func (l *LogChannelSink) Append(guildID string, rec audit.Record) {
	cfg := l.Resolver.Resolve(context.Background(), guildID)
	if cfg.LogChannelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:     "🛡️ AutoMod: " + rec.Type,
		Color:     0xed4245,
		Timestamp: rec.Timestamp.Format(time.RFC3339),
		Fields:    embedFields(rec),
	}

	if _, err := l.Session.ChannelMessageSendEmbed(cfg.LogChannelID, embed); err != nil {
		l.Logger.Warn("log channel send failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", cfg.LogChannelID),
			zap.Error(err))
	}
}

func embedFields(rec audit.Record) []*discordgo.MessageEmbedField {
	fields := make([]*discordgo.MessageEmbedField, 0, 4)
	if rec.ActorID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Actor", Value: fmt.Sprintf("<@%s>", rec.ActorID), Inline: true,
		})
	}
	if rec.Action != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Action", Value: rec.Action, Inline: true,
		})
	}
	if rec.Severity != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Severity", Value: rec.Severity, Inline: true,
		})
	}
	if rec.Detail != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Detail", Value: rec.Detail, Inline: false,
		})
	}
	return fields
}

// RedisNotifier broadcasts alerts over pub/sub for dashboard subscribers.
// Best-effort: a dead Redis loses alerts, never remediation.
type RedisNotifier struct {
	Redis  *redis.Client
	Logger *zap.Logger
}

func (r *RedisNotifier) Publish(guildID string, alert audit.Alert) {
	if r.Redis == nil {
		return
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}
	if err := r.Redis.PublishAlert(guildID, payload); err != nil {
		r.Logger.Warn("alert publish failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
	}
}
