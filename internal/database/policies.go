package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"discord-automod-bot/internal/models"
)

// Policy configuration operations. The dashboard writes through these; the
// engine only ever reads, via the settings resolver.

// GetPolicyConfig loads the policy and whitelist for a guild. A guild with
// no row gets the disabled default, which is how enforcement fails safe.
func (d *Database) GetPolicyConfig(ctx context.Context, guildID string) (*models.GuildPolicyConfig, error) {
	cfg := models.DisabledPolicy(guildID)

	err := d.db.QueryRowContext(ctx, `
		SELECT enabled, anti_raid, max_joins_per_minute, raid_action,
		       anti_spam, anti_link, anti_caps, anti_mention, log_channel, updated_at
		FROM automod_config
		WHERE guild_id = $1
	`, guildID).Scan(
		&cfg.Enabled, &cfg.AntiRaid, &cfg.MaxJoinsPerMinute, &cfg.RaidAction,
		&cfg.AntiSpam, &cfg.AntiLink, &cfg.AntiCaps, &cfg.AntiMention,
		&cfg.LogChannelID, &cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxJoinsPerMinute <= 0 {
		cfg.MaxJoinsPerMinute = models.DefaultMaxJoinsPerMinute
	}
	if cfg.RaidAction == "" {
		cfg.RaidAction = models.RaidActionKick
	}

	users, roles, err := d.getWhitelist(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for _, id := range users {
		cfg.WhitelistUserIDs[id] = struct{}{}
	}
	for _, id := range roles {
		cfg.WhitelistRoleIDs[id] = struct{}{}
	}

	return cfg, nil
}

func (d *Database) getWhitelist(ctx context.Context, guildID string) (users, roles []string, err error) {
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(array_agg(target_id) FILTER (WHERE target_type = 'user'), '{}'),
			COALESCE(array_agg(target_id) FILTER (WHERE target_type = 'role'), '{}')
		FROM automod_whitelist
		WHERE guild_id = $1
	`, guildID).Scan(pq.Array(&users), pq.Array(&roles))
	return users, roles, err
}

// UpsertPolicyConfig writes the full policy row for a guild.
func (d *Database) UpsertPolicyConfig(ctx context.Context, cfg *models.GuildPolicyConfig) error {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO automod_config
			(guild_id, enabled, anti_raid, max_joins_per_minute, raid_action,
			 anti_spam, anti_link, anti_caps, anti_mention, log_channel, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (guild_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			anti_raid = EXCLUDED.anti_raid,
			max_joins_per_minute = EXCLUDED.max_joins_per_minute,
			raid_action = EXCLUDED.raid_action,
			anti_spam = EXCLUDED.anti_spam,
			anti_link = EXCLUDED.anti_link,
			anti_caps = EXCLUDED.anti_caps,
			anti_mention = EXCLUDED.anti_mention,
			log_channel = EXCLUDED.log_channel,
			updated_at = EXCLUDED.updated_at
	`, cfg.GuildID, cfg.Enabled, cfg.AntiRaid, cfg.MaxJoinsPerMinute, cfg.RaidAction,
		cfg.AntiSpam, cfg.AntiLink, cfg.AntiCaps, cfg.AntiMention, cfg.LogChannelID, now)
	return err
}

// SetEnabled flips the master switch for a guild.
func (d *Database) SetEnabled(ctx context.Context, guildID string, enabled bool) error {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO automod_config (guild_id, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (guild_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`, guildID, enabled, now)
	return err
}

// SetLogChannel sets the audit log channel for a guild.
func (d *Database) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO automod_config (guild_id, log_channel, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (guild_id) DO UPDATE
		SET log_channel = EXCLUDED.log_channel, updated_at = EXCLUDED.updated_at
	`, guildID, channelID, now)
	return err
}

// AddWhitelist records a user or role exemption.
func (d *Database) AddWhitelist(ctx context.Context, guildID, targetID, targetType, addedBy string) error {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO automod_whitelist (guild_id, target_id, target_type, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, target_id) DO NOTHING
	`, guildID, targetID, targetType, addedBy, now)
	return err
}

// RemoveWhitelist drops a user or role exemption.
func (d *Database) RemoveWhitelist(ctx context.Context, guildID, targetID string) error {
	_, err := d.db.ExecContext(ctx, `
		DELETE FROM automod_whitelist WHERE guild_id = $1 AND target_id = $2
	`, guildID, targetID)
	return err
}
