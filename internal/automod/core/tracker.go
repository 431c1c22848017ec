package core

import (
	"sync"
	"time"
)

// windowMap holds the sliding windows for one key family.
// Each window is a slice of Unix-milli timestamps, append-only in arrival
// order, pruned lazily on every record against the caller's window size.
type windowMap struct {
	mu      sync.Mutex
	windows map[string][]int64
}

func newWindowMap() *windowMap {
	return &windowMap{windows: make(map[string][]int64)}
}

// recordAndCount appends ts, drops everything older than ts-window and
// returns the resulting count. An unseen key starts an empty window.
func (m *windowMap) recordAndCount(key string, ts, window int64) int {
	cutoff := ts - window

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows[key]

	// Windows are sorted by insertion order == time order, so pruning is a
	// prefix cut.
	start := 0
	for start < len(w) && w[start] < cutoff {
		start++
	}
	w = append(w[start:], ts)
	m.windows[key] = w

	return len(w)
}

// countRecent returns the live count for a key without recording anything.
func (m *windowMap) countRecent(key string, now, window int64) int {
	cutoff := now - window

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ts := range m.windows[key] {
		if ts >= cutoff {
			n++
		}
	}
	return n
}

// cleanup drops every key whose newest timestamp is older than maxIdle.
// Returns the number of keys removed.
func (m *windowMap) cleanup(now, maxIdle int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if len(w) == 0 || now-w[len(w)-1] > maxIdle {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

func (m *windowMap) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Tracker maintains the two independent window families: join windows keyed
// by guild and message windows keyed by user. The families never share
// state, so a guild ID and a user ID that happen to collide cannot
// cross-contaminate.
type Tracker struct {
	joins    *windowMap
	messages *windowMap
}

// NewTracker creates an empty tracker. All state lives for the process
// lifetime; the Cleanup Scheduler bounds it under churn.
func NewTracker() *Tracker {
	return &Tracker{
		joins:    newWindowMap(),
		messages: newWindowMap(),
	}
}

// RecordJoin records a join for a guild and returns how many joins landed
// within the trailing window.
func (t *Tracker) RecordJoin(guildID string, at time.Time, window time.Duration) int {
	return t.joins.recordAndCount(guildID, at.UnixMilli(), window.Milliseconds())
}

// RecordMessage records a message for a user and returns how many messages
// landed within the trailing window.
func (t *Tracker) RecordMessage(userID string, at time.Time, window time.Duration) int {
	return t.messages.recordAndCount(userID, at.UnixMilli(), window.Milliseconds())
}

// JoinCount reports the current join count for a guild without recording,
// letting callers inspect a window without extending it.
func (t *Tracker) JoinCount(guildID string, now time.Time, window time.Duration) int {
	return t.joins.countRecent(guildID, now.UnixMilli(), window.Milliseconds())
}

// Cleanup removes every key in both families whose newest event is older
// than maxIdle. Returns the total number of keys removed. Called on a fixed
// period by the scheduler; safe to run concurrently with recording.
func (t *Tracker) Cleanup(maxIdle time.Duration) int {
	now := time.Now().UnixMilli()
	idle := maxIdle.Milliseconds()
	return t.joins.cleanup(now, idle) + t.messages.cleanup(now, idle)
}

// Stats reports tracker occupancy for monitoring.
type Stats struct {
	JoinKeys    int
	MessageKeys int
}

// GetStats returns current tracker statistics.
func (t *Tracker) GetStats() Stats {
	return Stats{
		JoinKeys:    t.joins.size(),
		MessageKeys: t.messages.size(),
	}
}
