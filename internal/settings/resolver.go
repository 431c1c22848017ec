package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"discord-automod-bot/internal/models"
)

// Store is the external settings storage the resolver reads through.
type Store interface {
	GetPolicyConfig(ctx context.Context, guildID string) (*models.GuildPolicyConfig, error)
}

// SnapshotCache is the optional shared L2 (Redis) between bot processes.
type SnapshotCache interface {
	GetPolicy(guildID string) (*models.GuildPolicyConfig, bool)
	SetPolicy(cfg *models.GuildPolicyConfig) error
	InvalidatePolicy(guildID string) error
}

// Config for resolver construction.
type Config struct {
	L1MaxCost     int64         // max cost for the in-process cache (default 10MB)
	L1NumCounters int64         // keys tracked for admission (default 100k)
	TTL           time.Duration // snapshot staleness bound (default 30s)
}

// Resolver resolves per-guild policy on demand: ristretto L1, shared L2,
// then the store, with singleflight collapsing concurrent misses. A store
// error or missing row resolves to the disabled policy, so a guild without
// valid config is never partially enforced.
type Resolver struct {
	store  Store
	l2     SnapshotCache
	l1     *ristretto.Cache
	group  singleflight.Group
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolver creates a resolver. l2 may be nil when no shared cache exists.
func NewResolver(store Store, l2 SnapshotCache, logger *zap.Logger, cfg Config) (*Resolver, error) {
	if cfg.L1MaxCost == 0 {
		cfg.L1MaxCost = 10 << 20
	}
	if cfg.L1NumCounters == 0 {
		cfg.L1NumCounters = 100000
	}
	if cfg.TTL == 0 {
		cfg.TTL = 30 * time.Second
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy cache: %w", err)
	}

	return &Resolver{
		store:  store,
		l2:     l2,
		l1:     l1,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// Resolve returns the policy snapshot for a guild. Never returns an error:
// failure means the disabled policy (fail safe). The snapshot is shared and
// must be treated as immutable by callers.
func (r *Resolver) Resolve(ctx context.Context, guildID string) *models.GuildPolicyConfig {
	if val, found := r.l1.Get(guildID); found {
		return val.(*models.GuildPolicyConfig)
	}

	if r.l2 != nil {
		if cfg, ok := r.l2.GetPolicy(guildID); ok {
			r.l1.SetWithTTL(guildID, cfg, 1, r.ttl)
			return cfg
		}
	}

	val, err, _ := r.group.Do(guildID, func() (interface{}, error) {
		return r.store.GetPolicyConfig(ctx, guildID)
	})
	if err != nil {
		r.logger.Error("policy fetch failed, treating guild as disabled",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return models.DisabledPolicy(guildID)
	}

	cfg := val.(*models.GuildPolicyConfig)
	r.l1.SetWithTTL(guildID, cfg, 1, r.ttl)
	if r.l2 != nil {
		if err := r.l2.SetPolicy(cfg); err != nil {
			r.logger.Warn("policy L2 write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
	return cfg
}

// Invalidate drops cached snapshots after a settings write so the next
// evaluation sees the new config.
func (r *Resolver) Invalidate(guildID string) {
	r.l1.Del(guildID)
	if r.l2 != nil {
		if err := r.l2.InvalidatePolicy(guildID); err != nil {
			r.logger.Warn("policy L2 invalidate failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
}

// Warm pre-loads snapshots for a set of guilds, typically on Ready.
func (r *Resolver) Warm(ctx context.Context, guildIDs []string) {
	for _, id := range guildIDs {
		r.Resolve(ctx, id)
	}
}

// Close releases the in-process cache.
func (r *Resolver) Close() {
	r.l1.Close()
}
