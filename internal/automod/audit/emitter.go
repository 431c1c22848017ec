package audit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is one structured audit entry. Every evaluated rule produces one,
// whether or not remediation fired.
type Record struct {
	Type      string // "raid", "violation", "suspicious_account", "guild_change", "action"
	Action    string
	ActorID   string
	TargetID  string
	Severity  string
	Detail    string
	Timestamp time.Time
}

// Alert is the best-effort payload pushed to real-time subscribers.
type Alert struct {
	GuildID  string `json:"guild_id"`
	Type     string `json:"type"`
	ActorID  string `json:"actor_id"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// Sink receives audit records. Fire-and-forget: a failing sink must never
// affect remediation.
type Sink interface {
	Append(guildID string, rec Record)
}

// Notifier publishes alerts to real-time subscribers. Best-effort; not
// required for correctness.
type Notifier interface {
	Publish(guildID string, alert Alert)
}

type queued struct {
	guildID string
	rec     Record
	alert   *Alert
}

// Emitter decouples the evaluation hot path from sink I/O with a buffered
// queue drained by a single worker. When the queue is full the record is
// dropped rather than blocking event processing.
type Emitter struct {
	sinks     []Sink
	notifiers []Notifier
	queue     chan queued
	logger    *zap.Logger
	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewEmitter starts the emitter worker. Close stops it.
func NewEmitter(logger *zap.Logger, sinks []Sink, notifiers []Notifier) *Emitter {
	return newEmitter(logger, sinks, notifiers, 1000)
}

func newEmitter(logger *zap.Logger, sinks []Sink, notifiers []Notifier, queueSize int) *Emitter {
	e := &Emitter{
		sinks:     sinks,
		notifiers: notifiers,
		queue:     make(chan queued, queueSize),
		logger:    logger,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go e.worker()
	return e
}

// Emit queues a record, optionally with an alert for the notifiers.
// Never blocks the caller; after Close the record is silently dropped.
// Gateway handlers can still fire during the shutdown window, so this must
// stay safe to call at any point in the lifecycle.
func (e *Emitter) Emit(guildID string, rec Record, alert *Alert) {
	select {
	case <-e.quit:
		return
	default:
	}

	select {
	case e.queue <- queued{guildID: guildID, rec: rec, alert: alert}:
	default:
		e.logger.Warn("audit queue full, dropping record",
			zap.String("guild_id", guildID),
			zap.String("type", rec.Type))
	}
}

// The queue is never closed: Emit must remain safe concurrently with and
// after Close, and a send on a closed channel panics. The worker exits on
// quit instead, after draining what is already buffered.
func (e *Emitter) worker() {
	defer close(e.done)
	for {
		select {
		case q := <-e.queue:
			e.deliver(q)
		case <-e.quit:
			for {
				select {
				case q := <-e.queue:
					e.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(q queued) {
	for _, s := range e.sinks {
		e.append(s, q.guildID, q.rec)
	}
	if q.alert != nil {
		for _, n := range e.notifiers {
			e.publish(n, q.guildID, *q.alert)
		}
	}
}

func (e *Emitter) append(s Sink, guildID string, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("audit sink panicked", zap.Any("panic", r))
		}
	}()
	s.Append(guildID, rec)
}

func (e *Emitter) publish(n Notifier, guildID string, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifier panicked", zap.Any("panic", r))
		}
	}()
	n.Publish(guildID, alert)
}

// Close stops the worker after draining whatever is already queued.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		<-e.done
	})
}

// ZapSink writes audit records to the process log. Always wired; external
// stores and the dashboard log attach their own sinks.
type ZapSink struct {
	Logger *zap.Logger
}

func (z *ZapSink) Append(guildID string, rec Record) {
	z.Logger.Info("audit",
		zap.String("guild_id", guildID),
		zap.String("type", rec.Type),
		zap.String("action", rec.Action),
		zap.String("actor_id", rec.ActorID),
		zap.String("target_id", rec.TargetID),
		zap.String("severity", rec.Severity),
		zap.String("detail", rec.Detail),
		zap.Time("at", rec.Timestamp))
}
