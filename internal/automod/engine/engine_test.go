package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"discord-automod-bot/internal/automod/audit"
	"discord-automod-bot/internal/automod/core"
	"discord-automod-bot/internal/automod/executor"
	"discord-automod-bot/internal/models"
)

type stubResolver struct {
	cfg *models.GuildPolicyConfig
}

func (s *stubResolver) Resolve(_ context.Context, guildID string) *models.GuildPolicyConfig {
	if s.cfg == nil {
		return models.DisabledPolicy(guildID)
	}
	return s.cfg
}

type fakeProvider struct {
	mu        sync.Mutex
	kicks     []string
	bans      []string
	deletes   []string
	permEdits []string
}

func (f *fakeProvider) Kick(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, userID)
	return nil
}

func (f *fakeProvider) Ban(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans = append(f.bans, userID)
	return nil
}

func (f *fakeProvider) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeProvider) SetChannelSendPermission(_ context.Context, channelID, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permEdits = append(f.permEdits, channelID)
	return nil
}

func (f *fakeProvider) kickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.kicks)
}

type fakeLister struct {
	channels []executor.Channel
}

func (f *fakeLister) TextChannels(_ context.Context, _ string) ([]executor.Channel, error) {
	return f.channels, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (f *fakeSink) Append(_ string, rec audit.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeSink) byType(kind string) []audit.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.Record
	for _, r := range f.records {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	engine   *Engine
	provider *fakeProvider
	sink     *fakeSink
	emitter  *audit.Emitter
}

func newHarness(t *testing.T, cfg *models.GuildPolicyConfig) *harness {
	t.Helper()

	logger := zap.NewNop()
	provider := &fakeProvider{}
	sink := &fakeSink{}
	emitter := audit.NewEmitter(logger, []audit.Sink{sink}, nil)
	lister := &fakeLister{channels: []executor.Channel{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}}

	eng := New(&stubResolver{cfg: cfg}, core.NewTracker(), executor.New(provider, lister, logger), emitter, logger)

	return &harness{engine: eng, provider: provider, sink: sink, emitter: emitter}
}

// settle waits for in-flight actions and flushes the audit queue so
// assertions see everything.
func (h *harness) settle() {
	h.engine.Drain()
	h.emitter.Close()
}

func testPolicy() *models.GuildPolicyConfig {
	return &models.GuildPolicyConfig{
		GuildID:           "guild1",
		Enabled:           true,
		AntiRaid:          true,
		MaxJoinsPerMinute: 10,
		RaidAction:        models.RaidActionKick,
		AntiSpam:          true,
		AntiLink:          true,
		AntiCaps:          true,
		AntiMention:       true,
		WhitelistUserIDs:  map[string]struct{}{},
		WhitelistRoleIDs:  map[string]struct{}{},
	}
}

func joinAt(base time.Time, i int) models.JoinEvent {
	return models.JoinEvent{
		GuildID:          "guild1",
		UserID:           "user" + string(rune('A'+i)),
		OccurredAt:       base.Add(time.Duration(i*5) * time.Second),
		AccountCreatedAt: base.Add(-48 * time.Hour),
	}
}

func TestOnJoin_RaidTriggersOnEleventh(t *testing.T) {
	h := newHarness(t, testPolicy())
	base := time.Now()

	var decision models.RaidDecision
	for i := 0; i < 11; i++ {
		decision = h.engine.OnJoin(context.Background(), joinAt(base, i))
	}

	if !decision.Triggered {
		t.Fatal("11th join within the window should trigger")
	}
	if decision.Action != models.RaidActionKick {
		t.Errorf("Expected kick, got %s", decision.Action)
	}
	if decision.JoinCount != 11 {
		t.Errorf("Expected join count 11, got %d", decision.JoinCount)
	}

	h.settle()
	if got := h.provider.kickCount(); got != 1 {
		t.Errorf("Expected 1 kick, got %d", got)
	}
	if len(h.sink.byType("raid")) == 0 {
		t.Error("Raid breach should produce an audit record")
	}
}

func TestOnJoin_TenJoinsDoNotTrigger(t *testing.T) {
	h := newHarness(t, testPolicy())
	base := time.Now()

	var decision models.RaidDecision
	for i := 0; i < 10; i++ {
		decision = h.engine.OnJoin(context.Background(), joinAt(base, i))
	}

	if decision.Triggered {
		t.Error("10 joins at the limit should not trigger")
	}

	h.settle()
	if got := h.provider.kickCount(); got != 0 {
		t.Errorf("Expected no kicks, got %d", got)
	}
}

func TestOnJoin_BreachDebounce(t *testing.T) {
	h := newHarness(t, testPolicy())
	base := time.Now()

	// 14 joins inside one window: the action fires exactly once
	triggered := 0
	for i := 0; i < 14; i++ {
		if h.engine.OnJoin(context.Background(), joinAt(base, i)).Triggered {
			triggered++
		}
	}
	if triggered != 1 {
		t.Errorf("Expected exactly one trigger during the breach, got %d", triggered)
	}

	// After the window ages out the latch resets and a new breach fires again
	later := base.Add(10 * time.Minute)
	for i := 0; i < 11; i++ {
		if h.engine.OnJoin(context.Background(), joinAt(later, i)).Triggered {
			triggered++
		}
	}
	if triggered != 2 {
		t.Errorf("Expected a second trigger after the breach cooled off, got %d", triggered)
	}

	h.settle()
	if got := h.provider.kickCount(); got != 2 {
		t.Errorf("Expected 2 kicks total, got %d", got)
	}
}

func TestOnJoin_ActionMapping(t *testing.T) {
	base := time.Now()

	banCfg := testPolicy()
	banCfg.RaidAction = models.RaidActionBan
	h := newHarness(t, banCfg)
	for i := 0; i < 11; i++ {
		h.engine.OnJoin(context.Background(), joinAt(base, i))
	}
	h.settle()
	if len(h.provider.bans) != 1 {
		t.Errorf("Expected 1 ban, got %d", len(h.provider.bans))
	}

	lockCfg := testPolicy()
	lockCfg.RaidAction = models.RaidActionLockdown
	h = newHarness(t, lockCfg)
	for i := 0; i < 11; i++ {
		h.engine.OnJoin(context.Background(), joinAt(base, i))
	}
	h.settle()
	if len(h.provider.permEdits) != 3 {
		t.Errorf("Lockdown should edit all 3 text channels, got %d", len(h.provider.permEdits))
	}
}

func TestOnJoin_WhitelistedUserNeverTriggers(t *testing.T) {
	cfg := testPolicy()
	h := newHarness(t, cfg)
	base := time.Now()

	for i := 0; i < 20; i++ {
		cfg.WhitelistUserIDs["user"+string(rune('A'+i))] = struct{}{}
	}

	for i := 0; i < 20; i++ {
		if h.engine.OnJoin(context.Background(), joinAt(base, i)).Triggered {
			t.Fatal("Whitelisted joiners must never trigger")
		}
	}

	h.settle()
	if got := h.provider.kickCount(); got != 0 {
		t.Errorf("Expected no remediation, got %d kicks", got)
	}
}

func TestOnJoin_DisabledGuildIsIgnored(t *testing.T) {
	cfg := testPolicy()
	cfg.Enabled = false
	h := newHarness(t, cfg)
	base := time.Now()

	for i := 0; i < 20; i++ {
		if h.engine.OnJoin(context.Background(), joinAt(base, i)).Triggered {
			t.Fatal("Disabled guild must not trigger")
		}
	}

	h.settle()
	if len(h.sink.records) != 0 {
		t.Errorf("Disabled guild should produce no audit records, got %d", len(h.sink.records))
	}
}

func TestOnJoin_SuspiciousAccountIsLogOnly(t *testing.T) {
	h := newHarness(t, testPolicy())
	now := time.Now()

	decision := h.engine.OnJoin(context.Background(), models.JoinEvent{
		GuildID:          "guild1",
		UserID:           "young",
		OccurredAt:       now,
		AccountCreatedAt: now.Add(-12 * time.Hour),
	})

	if decision.Triggered {
		t.Error("A single suspicious join must not trigger remediation")
	}

	h.settle()
	if len(h.sink.byType("suspicious_account")) != 1 {
		t.Error("Expected a suspicious_account audit record")
	}
	if got := h.provider.kickCount(); got != 0 {
		t.Errorf("Expected no kicks, got %d", got)
	}
}

func messageAt(base time.Time, i int, content string) models.MessageEvent {
	return models.MessageEvent{
		GuildID:    "guild1",
		UserID:     "chatter",
		ChannelID:  "chan1",
		MessageID:  "msg" + string(rune('0'+i)),
		Content:    content,
		OccurredAt: base.Add(time.Duration(i*1800) * time.Millisecond),
	}
}

func TestOnMessage_SpamOnSixth(t *testing.T) {
	h := newHarness(t, testPolicy())
	base := time.Now()

	var res models.ViolationResult
	for i := 0; i < 6; i++ {
		res = h.engine.OnMessage(context.Background(), messageAt(base, i, "hello"))
	}

	if !res.Has(models.ViolationSpam) {
		t.Error("6th message within 9s should be spam")
	}

	h.settle()
	if len(h.provider.deletes) == 0 {
		t.Error("Spam should delete the triggering message")
	}
}

func TestOnMessage_FiveMessagesAreFine(t *testing.T) {
	h := newHarness(t, testPolicy())
	base := time.Now()

	var res models.ViolationResult
	for i := 0; i < 5; i++ {
		res = h.engine.OnMessage(context.Background(), messageAt(base, i, "hello"))
	}

	if res.Has(models.ViolationSpam) {
		t.Error("5 messages within the window must not be spam")
	}

	h.settle()
	if len(h.provider.deletes) != 0 {
		t.Errorf("Expected no deletions, got %d", len(h.provider.deletes))
	}
}

func TestOnMessage_PrivilegedActorExempt(t *testing.T) {
	h := newHarness(t, testPolicy())

	evt := messageAt(time.Now(), 0, "EVERYONE LOOK https://spam.example")
	evt.MentionCount = 20
	evt.ActorIsPrivileged = true

	res := h.engine.OnMessage(context.Background(), evt)
	if len(res.Violations) != 0 {
		t.Errorf("Privileged actor must be exempt, got %v", res.Violations)
	}
}

func TestOnMessage_RoleWhitelistExempt(t *testing.T) {
	cfg := testPolicy()
	cfg.WhitelistRoleIDs["trusted"] = struct{}{}
	h := newHarness(t, cfg)

	evt := messageAt(time.Now(), 0, "CHECK https://spam.example NOW OK")
	evt.RoleIDs = []string{"member", "trusted"}

	res := h.engine.OnMessage(context.Background(), evt)
	if len(res.Violations) != 0 {
		t.Errorf("Role-whitelisted actor must be exempt, got %v", res.Violations)
	}

	h.settle()
	if len(h.provider.deletes) != 0 {
		t.Error("Exempt actor's message must not be deleted")
	}
}

func TestOnRoleOrChannelChange_LogOnly(t *testing.T) {
	h := newHarness(t, testPolicy())

	h.engine.OnRoleOrChannelChange(context.Background(), "guild1", "channel_delete", "chan9", "CHANNEL_DELETE")

	h.settle()
	if len(h.sink.byType("guild_change")) != 1 {
		t.Error("Expected a guild_change audit record")
	}
	if got := h.provider.kickCount(); got != 0 {
		t.Error("Log-only path must never remediate")
	}
}
