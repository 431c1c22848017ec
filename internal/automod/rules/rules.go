package rules

import (
	"regexp"
	"time"
	"unicode"

	"discord-automod-bot/internal/models"
)

var linkPattern = regexp.MustCompile(`(?i)https?://`)

// IsExempt reports whether an actor is whitelisted by user ID or by any of
// its role IDs. Both checks are OR'd; the user check goes first only to
// short-circuit.
func IsExempt(userID string, roleIDs []string, cfg *models.GuildPolicyConfig) bool {
	if _, ok := cfg.WhitelistUserIDs[userID]; ok {
		return true
	}
	for _, roleID := range roleIDs {
		if _, ok := cfg.WhitelistRoleIDs[roleID]; ok {
			return true
		}
	}
	return false
}

// IsRaid reports whether the join count for the trailing window breaches the
// configured per-minute limit.
func IsRaid(joinCount int, cfg *models.GuildPolicyConfig) bool {
	limit := cfg.MaxJoinsPerMinute
	if limit <= 0 {
		limit = models.DefaultMaxJoinsPerMinute
	}
	return joinCount > limit
}

// IsSuspiciousAccount reports whether the joining account is younger than a
// day. Log-only: this never triggers remediation by itself.
func IsSuspiciousAccount(accountCreatedAt, occurredAt time.Time) bool {
	if accountCreatedAt.IsZero() {
		return false
	}
	return occurredAt.Sub(accountCreatedAt) < models.SuspiciousAccountAge
}

// IsSpam reports whether the message count for the trailing window breaches
// the spam limit. The 6th message inside the window is the trigger.
func IsSpam(messageCount int) bool {
	return messageCount > models.SpamMessageLimit
}

// HasLink reports whether the content contains an http(s) URL.
func HasLink(content string) bool {
	return linkPattern.MatchString(content)
}

// IsCapsAbuse reports whether the content is long enough to judge and more
// than 70% of its runes are uppercase letters.
func IsCapsAbuse(content string) bool {
	runes := []rune(content)
	if len(runes) < models.CapsMinLength {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(len(runes)) > models.CapsRatioThreshold
}

// IsMentionSpam reports whether the combined user+role mention count
// breaches the limit.
func IsMentionSpam(mentionCount int) bool {
	return mentionCount > models.MentionLimit
}

// EvaluateMessage runs the enabled content rules against one message and
// unions the results. messageCount is the user's window count including this
// message. Privileged actors must be filtered out by the caller before rule
// evaluation, not here.
func EvaluateMessage(evt *models.MessageEvent, messageCount int, cfg *models.GuildPolicyConfig) models.ViolationResult {
	var violations []string

	if cfg.AntiSpam && IsSpam(messageCount) {
		violations = append(violations, models.ViolationSpam)
	}
	if cfg.AntiLink && HasLink(evt.Content) {
		violations = append(violations, models.ViolationLink)
	}
	if cfg.AntiCaps && IsCapsAbuse(evt.Content) {
		violations = append(violations, models.ViolationCaps)
	}
	if cfg.AntiMention && IsMentionSpam(evt.MentionCount) {
		violations = append(violations, models.ViolationMention)
	}

	return models.ViolationResult{
		Violations: violations,
		Severity:   severityFor(len(violations)),
	}
}

func severityFor(violationCount int) string {
	switch {
	case violationCount == 0:
		return ""
	case violationCount == 1:
		return models.SeverityLow
	case violationCount == 2:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}
