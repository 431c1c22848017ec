package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNoChannelLister is returned when lockdown is requested but no channel
// lister was wired at construction.
var ErrNoChannelLister = errors.New("executor: no channel lister configured")

// Action identifies one remediation.
type Action string

const (
	ActionKick          Action = "kick"
	ActionBan           Action = "ban"
	ActionDeleteMessage Action = "delete_message"
	ActionLockdownGuild Action = "lockdown_guild"
)

// Provider performs moderation calls against the platform. The only I/O in
// the pipeline goes through here.
type Provider interface {
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SetChannelSendPermission(ctx context.Context, channelID, roleID string, allowed bool) error
}

// Channel is the minimal view of a text channel needed for lockdown.
type Channel struct {
	ID   string
	Name string
}

// ChannelLister enumerates a guild's text channels for guild-wide actions.
type ChannelLister interface {
	TextChannels(ctx context.Context, guildID string) ([]Channel, error)
}

// Target carries the identifiers an action operates on.
type Target struct {
	GuildID   string
	UserID    string
	ChannelID string
	MessageID string
	Reason    string
}

// Outcome reports how one action went. A lockdown that fails on some
// channels but not all is partial, not failed.
type Outcome struct {
	Action    Action
	Attempted int
	Succeeded int
	Failed    int
	Err       error // first error seen, nil on full success
}

// Partial reports a mixed result: some sub-operations succeeded, some failed.
func (o Outcome) Partial() bool {
	return o.Succeeded > 0 && o.Failed > 0
}

// Executor runs remediation actions against the provider. Failures are
// caught and logged per call; one action's failure never aborts a sibling
// action, and nothing propagates back into the evaluation pipeline. No
// retries: a missed opportunity passes.
type Executor struct {
	provider Provider
	channels ChannelLister
	logger   *zap.Logger
	timeout  time.Duration
}

// CallTimeout bounds every individual provider call.
const CallTimeout = 10 * time.Second

// New creates an executor. lister may be nil when lockdown is never
// configured, in which case lockdown outcomes fail cleanly.
func New(provider Provider, lister ChannelLister, logger *zap.Logger) *Executor {
	return &Executor{
		provider: provider,
		channels: lister,
		logger:   logger,
		timeout:  CallTimeout,
	}
}

// Execute performs one action and reports the outcome. Blocking: callers on
// the hot path run it in its own goroutine.
func (e *Executor) Execute(ctx context.Context, action Action, target Target) Outcome {
	switch action {
	case ActionKick:
		return e.single(ctx, action, target, func(c context.Context) error {
			return e.provider.Kick(c, target.GuildID, target.UserID, target.Reason)
		})
	case ActionBan:
		return e.single(ctx, action, target, func(c context.Context) error {
			return e.provider.Ban(c, target.GuildID, target.UserID, target.Reason)
		})
	case ActionDeleteMessage:
		return e.single(ctx, action, target, func(c context.Context) error {
			return e.provider.DeleteMessage(c, target.ChannelID, target.MessageID)
		})
	case ActionLockdownGuild:
		return e.lockdown(ctx, target)
	default:
		e.logger.Warn("unknown action", zap.String("action", string(action)))
		return Outcome{Action: action}
	}
}

func (e *Executor) single(ctx context.Context, action Action, target Target, call func(context.Context) error) Outcome {
	out := Outcome{Action: action, Attempted: 1}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := call(cctx); err != nil {
		out.Failed = 1
		out.Err = err
		e.logger.Error("action failed",
			zap.String("action", string(action)),
			zap.String("guild_id", target.GuildID),
			zap.String("user_id", target.UserID),
			zap.Error(err))
		return out
	}

	out.Succeeded = 1
	e.logger.Info("action executed",
		zap.String("action", string(action)),
		zap.String("guild_id", target.GuildID),
		zap.String("user_id", target.UserID))
	return out
}

// lockdown revokes send permission for @everyone on every text channel.
// A failure on one channel is logged and iteration continues; the outcome
// reports how many channels succeeded.
func (e *Executor) lockdown(ctx context.Context, target Target) Outcome {
	out := Outcome{Action: ActionLockdownGuild}

	if e.channels == nil {
		out.Err = ErrNoChannelLister
		e.logger.Error("lockdown requested without channel lister",
			zap.String("guild_id", target.GuildID))
		return out
	}

	lctx, cancel := context.WithTimeout(ctx, e.timeout)
	chans, err := e.channels.TextChannels(lctx, target.GuildID)
	cancel()
	if err != nil {
		out.Err = err
		e.logger.Error("lockdown channel enumeration failed",
			zap.String("guild_id", target.GuildID),
			zap.Error(err))
		return out
	}

	// The @everyone role ID equals the guild ID.
	everyoneRole := target.GuildID

	for _, ch := range chans {
		out.Attempted++

		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.provider.SetChannelSendPermission(cctx, ch.ID, everyoneRole, false)
		cancel()

		if err != nil {
			out.Failed++
			if out.Err == nil {
				out.Err = err
			}
			e.logger.Error("lockdown channel failed",
				zap.String("guild_id", target.GuildID),
				zap.String("channel_id", ch.ID),
				zap.Error(err))
			continue
		}
		out.Succeeded++
	}

	e.logger.Info("lockdown complete",
		zap.String("guild_id", target.GuildID),
		zap.Int("locked", out.Succeeded),
		zap.Int("failed", out.Failed))
	return out
}
