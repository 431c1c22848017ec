package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"discord-automod-bot/internal/automod/audit"
	"discord-automod-bot/internal/automod/core"
	"discord-automod-bot/internal/automod/executor"
	"discord-automod-bot/internal/automod/rules"
	"discord-automod-bot/internal/metrics"
	"discord-automod-bot/internal/models"
)

// PolicyResolver hands the engine an immutable policy snapshot per
// evaluation. Resolution failures surface as the disabled policy, never as
// an error.
type PolicyResolver interface {
	Resolve(ctx context.Context, guildID string) *models.GuildPolicyConfig
}

// Engine owns all detection state and drives the pipeline:
// whitelist short-circuit, window recording, rule evaluation, decision,
// then async remediation and audit emission. Entry points are explicit
// methods invoked by the host's event loop; events for the same key must
// arrive in order, events for different keys may be processed concurrently.
type Engine struct {
	resolver PolicyResolver
	tracker  *core.Tracker
	executor *executor.Executor
	emitter  *audit.Emitter
	logger   *zap.Logger

	// Raid track state: Normal -> RaidSuspected -> RaidHandled per guild.
	// The handled latch stops the configured action from re-firing on every
	// join while the window count stays above threshold; it resets once the
	// count drops back under.
	mu          sync.Mutex
	raidHandled map[string]bool

	actions sync.WaitGroup
}

// New creates an engine. The caller owns the emitter's lifecycle.
func New(resolver PolicyResolver, tracker *core.Tracker, exec *executor.Executor, emitter *audit.Emitter, logger *zap.Logger) *Engine {
	return &Engine{
		resolver:    resolver,
		tracker:     tracker,
		executor:    exec,
		emitter:     emitter,
		logger:      logger,
		raidHandled: make(map[string]bool),
	}
}

// OnJoin evaluates one membership-add. Synchronous and in-memory except for
// remediation, which runs in its own goroutine.
func (e *Engine) OnJoin(ctx context.Context, evt models.JoinEvent) models.RaidDecision {
	start := time.Now()
	metrics.EventsTotal.WithLabelValues("join").Inc()

	cfg := e.resolver.Resolve(ctx, evt.GuildID)
	if !cfg.Enabled || !cfg.AntiRaid {
		return models.RaidDecision{}
	}

	// Joins carry no role set yet; only the user whitelist applies.
	if rules.IsExempt(evt.UserID, nil, cfg) {
		metrics.ExemptionsTotal.Inc()
		return models.RaidDecision{}
	}

	// Log-only flag: a fresh account joining is worth an audit entry but
	// never remediation by itself.
	if rules.IsSuspiciousAccount(evt.AccountCreatedAt, evt.OccurredAt) {
		e.emitter.Emit(evt.GuildID, audit.Record{
			Type:      "suspicious_account",
			ActorID:   evt.UserID,
			Severity:  models.SeverityLow,
			Detail:    "account younger than 24h at join",
			Timestamp: evt.OccurredAt,
		}, nil)
	}

	count := e.tracker.RecordJoin(evt.GuildID, evt.OccurredAt, models.JoinWindow)
	breached := rules.IsRaid(count, cfg)

	decision := models.RaidDecision{JoinCount: count}

	e.mu.Lock()
	if breached {
		if !e.raidHandled[evt.GuildID] {
			e.raidHandled[evt.GuildID] = true
			decision.Triggered = true
			decision.Action = cfg.RaidAction
		}
	} else {
		delete(e.raidHandled, evt.GuildID)
	}
	e.mu.Unlock()

	if breached {
		rec := audit.Record{
			Type:      "raid",
			Action:    cfg.RaidAction,
			ActorID:   evt.UserID,
			Severity:  models.SeverityCritical,
			Detail:    "join rate exceeded",
			Timestamp: evt.OccurredAt,
		}
		var alert *audit.Alert
		if decision.Triggered {
			metrics.RaidsTotal.WithLabelValues(cfg.RaidAction).Inc()
			alert = &audit.Alert{
				GuildID:  evt.GuildID,
				Type:     "raid",
				ActorID:  evt.UserID,
				Severity: models.SeverityCritical,
				Detail:   models.GetRaidActionDisplayName(cfg.RaidAction),
			}
		}
		e.emitter.Emit(evt.GuildID, rec, alert)
	}

	if decision.Triggered {
		e.dispatchRaidAction(cfg.RaidAction, evt)
	}

	metrics.ObserveEval("join", start)
	return decision
}

// OnMessage evaluates one message-create against the enabled content rules.
func (e *Engine) OnMessage(ctx context.Context, evt models.MessageEvent) models.ViolationResult {
	start := time.Now()
	metrics.EventsTotal.WithLabelValues("message").Inc()

	cfg := e.resolver.Resolve(ctx, evt.GuildID)
	if !cfg.Enabled {
		return models.ViolationResult{}
	}
	if !cfg.AntiSpam && !cfg.AntiLink && !cfg.AntiCaps && !cfg.AntiMention {
		return models.ViolationResult{}
	}

	// Actors holding message-management rights are exempt from all message
	// rules, checked before any rule runs.
	if evt.ActorIsPrivileged || rules.IsExempt(evt.UserID, evt.RoleIDs, cfg) {
		metrics.ExemptionsTotal.Inc()
		return models.ViolationResult{}
	}

	count := e.tracker.RecordMessage(evt.UserID, evt.OccurredAt, models.MessageWindow)
	result := rules.EvaluateMessage(&evt, count, cfg)

	if len(result.Violations) > 0 {
		for _, kind := range result.Violations {
			metrics.ViolationsTotal.WithLabelValues(kind).Inc()
		}

		detail := strings.Join(result.Violations, ",")
		e.emitter.Emit(evt.GuildID, audit.Record{
			Type:      "violation",
			Action:    string(executor.ActionDeleteMessage),
			ActorID:   evt.UserID,
			TargetID:  evt.MessageID,
			Severity:  result.Severity,
			Detail:    detail,
			Timestamp: evt.OccurredAt,
		}, &audit.Alert{
			GuildID:  evt.GuildID,
			Type:     "violation",
			ActorID:  evt.UserID,
			Severity: result.Severity,
			Detail:   detail,
		})

		// Delete + warn, no escalation ladder. Repeated offenses only show
		// up in audit history.
		e.dispatch(executor.ActionDeleteMessage, executor.Target{
			GuildID:   evt.GuildID,
			UserID:    evt.UserID,
			ChannelID: evt.ChannelID,
			MessageID: evt.MessageID,
			Reason:    "AutoMod: " + detail,
		})
	}

	metrics.ObserveEval("message", start)
	return result
}

// OnRoleOrChannelChange is the log-only path for structural guild changes.
// No remediation ever fires from here.
func (e *Engine) OnRoleOrChannelChange(ctx context.Context, guildID, changeType, subjectID, detail string) {
	metrics.EventsTotal.WithLabelValues("guild_change").Inc()

	cfg := e.resolver.Resolve(ctx, guildID)
	if !cfg.Enabled {
		return
	}

	e.emitter.Emit(guildID, audit.Record{
		Type:      "guild_change",
		Action:    changeType,
		TargetID:  subjectID,
		Severity:  models.SeverityLow,
		Detail:    detail,
		Timestamp: time.Now(),
	}, nil)
}

func (e *Engine) dispatchRaidAction(raidAction string, evt models.JoinEvent) {
	target := executor.Target{
		GuildID: evt.GuildID,
		UserID:  evt.UserID,
		Reason:  "AutoMod: join rate exceeded",
	}

	switch raidAction {
	case models.RaidActionBan:
		e.dispatch(executor.ActionBan, target)
	case models.RaidActionLockdown:
		e.dispatch(executor.ActionLockdownGuild, target)
	default:
		e.dispatch(executor.ActionKick, target)
	}
}

// dispatch runs one remediation off the hot path. Outcomes feed metrics and
// the audit trail; failures never propagate back into event processing.
func (e *Engine) dispatch(action executor.Action, target executor.Target) {
	e.actions.Add(1)
	go func() {
		defer e.actions.Done()

		out := e.executor.Execute(context.Background(), action, target)

		outcome := "success"
		switch {
		case out.Partial():
			outcome = "partial"
		case out.Err != nil:
			outcome = "failed"
		}
		metrics.ActionsTotal.WithLabelValues(string(action), outcome).Inc()

		e.emitter.Emit(target.GuildID, audit.Record{
			Type:      "action",
			Action:    string(action),
			TargetID:  target.UserID,
			Severity:  models.SeverityHigh,
			Detail:    outcome,
			Timestamp: time.Now(),
		}, nil)
	}()
}

// Drain blocks until all in-flight remediation goroutines finish. Part of
// shutdown; also keeps tests deterministic.
func (e *Engine) Drain() {
	e.actions.Wait()
}

// TrackerStats exposes tracker occupancy for the metrics gauge.
func (e *Engine) TrackerStats() core.Stats {
	return e.tracker.GetStats()
}
