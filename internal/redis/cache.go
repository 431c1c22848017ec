package redis

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"discord-automod-bot/internal/models"
)

// Policy snapshot caching (L2 behind the settings resolver's in-process L1)

const policyTTL = 5 * time.Minute

func policyKey(guildID string) string {
	return fmt.Sprintf("automod:policy:%s", guildID)
}

// GetPolicy returns the cached policy snapshot for a guild, or false on miss
// or decode failure.
func (c *Client) GetPolicy(guildID string) (*models.GuildPolicyConfig, bool) {
	val, err := c.Get(policyKey(guildID))
	if err != nil || val == "" {
		return nil, false
	}
	var cfg models.GuildPolicyConfig
	if err := json.Unmarshal([]byte(val), &cfg); err != nil {
		return nil, false
	}
	return &cfg, true
}

// SetPolicy caches a policy snapshot. Write-through from the resolver.
func (c *Client) SetPolicy(cfg *models.GuildPolicyConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.Set(policyKey(cfg.GuildID), data, policyTTL)
}

// InvalidatePolicy drops the cached snapshot after a settings write.
func (c *Client) InvalidatePolicy(guildID string) error {
	return c.Del(policyKey(guildID))
}

// Alert fan-out

func alertChannel(guildID string) string {
	return fmt.Sprintf("automod:alerts:%s", guildID)
}

// PublishAlert broadcasts an alert payload for a guild's dashboard
// subscribers. Best-effort: the error is the caller's to log and drop.
func (c *Client) PublishAlert(guildID string, payload []byte) error {
	return c.Publish(alertChannel(guildID), payload)
}
