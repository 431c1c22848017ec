package models

import "time"

// GuildPolicyConfig is the per-guild automod configuration snapshot.
// The Settings Resolver hands each evaluation its own immutable copy;
// nothing in the pipeline mutates it after construction.
type GuildPolicyConfig struct {
	GuildID           string
	Enabled           bool
	AntiRaid          bool
	MaxJoinsPerMinute int
	RaidAction        string // RaidActionKick, RaidActionBan or RaidActionLockdown
	AntiSpam          bool
	AntiLink          bool
	AntiCaps          bool
	AntiMention       bool
	WhitelistUserIDs  map[string]struct{}
	WhitelistRoleIDs  map[string]struct{}
	LogChannelID      string
	UpdatedAt         int64
}

// DisabledPolicy returns the fail-safe config used when no row exists or the
// store errored: fully disabled, nothing enforced.
func DisabledPolicy(guildID string) *GuildPolicyConfig {
	return &GuildPolicyConfig{
		GuildID:           guildID,
		MaxJoinsPerMinute: DefaultMaxJoinsPerMinute,
		RaidAction:        RaidActionKick,
		WhitelistUserIDs:  map[string]struct{}{},
		WhitelistRoleIDs:  map[string]struct{}{},
	}
}

// JoinEvent is a single membership-add, consumed once by the engine.
// Only OccurredAt survives inside the tracking window.
type JoinEvent struct {
	GuildID          string
	UserID           string
	OccurredAt       time.Time
	AccountCreatedAt time.Time
}

// MessageEvent is a single message-create, consumed once by the engine.
type MessageEvent struct {
	GuildID           string
	UserID            string
	ChannelID         string
	MessageID         string
	Content           string
	MentionCount      int
	RoleIDs           []string
	ActorIsPrivileged bool
	OccurredAt        time.Time
}

// RaidDecision is the ephemeral outcome of one join evaluation.
type RaidDecision struct {
	Triggered bool
	JoinCount int
	Action    string
}

// ViolationResult is the ephemeral outcome of one message evaluation.
type ViolationResult struct {
	Violations []string // ViolationSpam, ViolationLink, ViolationCaps, ViolationMention
	Severity   string
}

// Has reports whether a specific violation kind is present.
func (v ViolationResult) Has(kind string) bool {
	for _, k := range v.Violations {
		if k == kind {
			return true
		}
	}
	return false
}

// Raid action constants
const (
	RaidActionKick     = "kick"
	RaidActionBan      = "ban"
	RaidActionLockdown = "lockdown"
)

// Violation kind constants
const (
	ViolationSpam    = "spam"
	ViolationLink    = "link"
	ViolationCaps    = "caps"
	ViolationMention = "mention"
)

// Severity constants
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Detection thresholds and windows
const (
	JoinWindow    = 60 * time.Second
	MessageWindow = 10 * time.Second

	DefaultMaxJoinsPerMinute = 10
	SpamMessageLimit         = 5 // 6th message inside the window triggers
	MentionLimit             = 5
	CapsMinLength            = 6
	CapsRatioThreshold       = 0.70
	SuspiciousAccountAge     = 24 * time.Hour
)

// GetRaidActionDisplayName returns a human-readable name for a raid action.
func GetRaidActionDisplayName(action string) string {
	switch action {
	case RaidActionKick:
		return "Kick Joiner"
	case RaidActionBan:
		return "Ban Joiner"
	case RaidActionLockdown:
		return "Server Lockdown"
	default:
		return action
	}
}
