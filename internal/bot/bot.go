package bot

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-automod-bot/internal/automod"
	"discord-automod-bot/internal/automod/audit"
	"discord-automod-bot/internal/commands"
	"discord-automod-bot/internal/database"
	"discord-automod-bot/internal/redis"
	"discord-automod-bot/internal/settings"
)

type Bot struct {
	Session   *discordgo.Session
	DB        *database.Database
	Redis     *redis.Client
	Resolver  *settings.Resolver
	AutoMod   *automod.Service
	StartTime time.Time
	Logger    *zap.Logger
}

func New(token string, db *database.Database, rdb *redis.Client) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}

	// Pooled keep-alive transport for moderation REST calls; remediation
	// latency is the one place the bot competes with the attacker.
	tr := &http.Transport{
		MaxIdleConns:          500,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       120 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       100,
		ResponseHeaderTimeout: 5 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	s.Client = &http.Client{
		Transport: tr,
		Timeout:   15 * time.Second,
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers | // Required for join events (raid track)
		discordgo.IntentsMessageContent // Required for content rules

	s.Identify.Compress = false
	s.Compress = false

	// State is needed here: member roles and channel permissions feed the
	// whitelist and privilege checks.
	s.StateEnabled = true
	s.State.TrackChannels = true
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	s.State.MaxMessageCount = 0

	s.ShouldReconnectOnError = true
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 3

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logger error: %w", err)
	}

	resolver, err := settings.NewResolver(db, rdb, logger, settings.Config{})
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	b := &Bot{
		Session:   s,
		DB:        db,
		Redis:     rdb,
		Resolver:  resolver,
		StartTime: time.Now(),
		Logger:    logger,
	}

	b.AutoMod = automod.New(s, resolver, logger,
		[]audit.Sink{&LogChannelSink{Session: s, Resolver: resolver, Logger: logger}},
		[]audit.Notifier{&RedisNotifier{Redis: rdb, Logger: logger}},
	)

	cmdHandler := &commands.Handler{DB: db, AutoMod: b.AutoMod, Logger: logger}
	s.AddHandler(cmdHandler.HandleInteraction)

	return b, nil
}

func (b *Bot) Start() error {
	log.Println("⚡ Connecting to Discord Gateway...")

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}
	log.Println("✓ Connected to Discord Gateway")

	if b.Session.State.User == nil {
		u, err := b.Session.User("@me")
		if err != nil {
			return fmt.Errorf("failed to get bot user: %w", err)
		}
		b.Session.State.User = u
	}
	log.Printf("✓ Logged in as: %s (ID: %s)",
		b.Session.State.User.Username,
		b.Session.State.User.ID)

	go b.monitorHeartbeat()

	log.Println("Registering commands...")
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, "", commands.Commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Printf("✓ Registered %d commands", len(commands.Commands))

	// Cache warming + gateway handlers + cleanup sweep
	b.AutoMod.Start()

	go func() {
		log.Println("Starting pprof server on localhost:6060")
		log.Println(http.ListenAndServe("localhost:6060", nil))
	}()

	log.Println("\n🚀 AutoMod bot is running!")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	return b.Close()
}

func (b *Bot) Close() error {
	log.Println("Shutting down...")
	b.AutoMod.Stop()
	if b.Logger != nil {
		b.Logger.Sync()
	}
	b.Resolver.Close()
	b.DB.Close()
	b.Redis.Close()
	return b.Session.Close()
}

// monitorHeartbeat reports WebSocket heartbeat latency every 30 seconds.
func (b *Bot) monitorHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		latency := b.Session.HeartbeatLatency().Milliseconds()
		if latency > 100 {
			log.Printf("⚠️  WS Latency: %dms (HIGH)", latency)
		} else {
			log.Printf("✅ WS Latency: %dms", latency)
		}
	}
}
