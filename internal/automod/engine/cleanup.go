package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"discord-automod-bot/internal/metrics"
)

const (
	// CleanupInterval is how often idle window keys are swept.
	CleanupInterval = 5 * time.Minute
	// IdleEviction drops a key once its newest event is this old. A key
	// evicted here starts over at count 1 on its next event.
	IdleEviction = 5 * time.Minute
)

// StartCleanup runs the periodic tracker sweep until ctx is cancelled.
// Single goroutine, so a sweep never overlaps itself. Blocks; run it as
// `go e.StartCleanup(ctx)`.
func (e *Engine) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := e.tracker.Cleanup(IdleEviction)
			stats := e.tracker.GetStats()
			metrics.TrackedKeys.WithLabelValues("join").Set(float64(stats.JoinKeys))
			metrics.TrackedKeys.WithLabelValues("message").Set(float64(stats.MessageKeys))
			if removed > 0 {
				e.logger.Debug("tracker cleanup",
					zap.Int("removed", removed),
					zap.Int("join_keys", stats.JoinKeys),
					zap.Int("message_keys", stats.MessageKeys))
			}
		}
	}
}
