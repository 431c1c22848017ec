package automod

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-automod-bot/internal/automod/audit"
	"discord-automod-bot/internal/automod/core"
	"discord-automod-bot/internal/automod/engine"
	"discord-automod-bot/internal/automod/executor"
	"discord-automod-bot/internal/provider"
	"discord-automod-bot/internal/settings"
)

// Service is the automod coordinator: it owns the tracker, engine, executor
// and emitter, wires them to a discordgo session, and manages their
// lifecycle. Pure event-driven; the only background work is the cleanup
// sweep.
type Service struct {
	session  *discordgo.Session
	resolver *settings.Resolver
	engine   *engine.Engine
	emitter  *audit.Emitter
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// New builds the full pipeline around a session. Extra sinks/notifiers
// (log-channel sink, dashboard notifier) ride alongside the always-on zap
// sink.
func New(session *discordgo.Session, resolver *settings.Resolver, logger *zap.Logger, sinks []audit.Sink, notifiers []audit.Notifier) *Service {
	sinks = append([]audit.Sink{&audit.ZapSink{Logger: logger}}, sinks...)
	emitter := audit.NewEmitter(logger, sinks, notifiers)

	disc := provider.NewDiscord(session)
	exec := executor.New(disc, disc, logger)
	tracker := core.NewTracker()

	s := &Service{
		session:  session,
		resolver: resolver,
		engine:   engine.New(resolver, tracker, exec, emitter, logger),
		emitter:  emitter,
		logger:   logger,
	}

	// Ready fires once right after the gateway handshake, which happens
	// inside Session.Open, before Start runs. Registering here, pre-Open,
	// is the only way the handler sees it.
	session.AddHandlerOnce(s.handleReady)

	return s
}

// handleReady warms the policy cache from the Ready guild list, the first
// point where the full set of joined guilds is known.
func (s *Service) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	guildIDs := make([]string, 0, len(r.Guilds))
	for _, guild := range r.Guilds {
		guildIDs = append(guildIDs, guild.ID)
	}

	log.Printf("🔥 Warming automod policy cache for %d guilds...", len(guildIDs))
	s.resolver.Warm(context.Background(), guildIDs)
}

// Engine exposes the decision engine, mainly for manual triggers and tests.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Start registers gateway handlers and kicks off the cleanup sweep. Cache
// warming is driven by the Ready handler registered in New.
func (s *Service) Start() {
	s.session.AddHandler(s.handleMemberAdd)
	s.session.AddHandler(s.handleMessageCreate)
	s.session.AddHandler(s.handleRawEvent)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.engine.StartCleanup(ctx)

	log.Println("⚡ AutoMod started - event-driven detection active")
}

// Invalidate refreshes cached policy after a settings write.
func (s *Service) Invalidate(guildID string) {
	s.resolver.Invalidate(guildID)
	s.logger.Info("policy cache invalidated", zap.String("guild_id", guildID))
}

// Stop cancels the cleanup sweep, waits for in-flight remediation and
// drains the audit queue.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.engine.Drain()
	s.emitter.Close()
}
