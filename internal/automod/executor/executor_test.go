package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeProvider struct {
	mu          sync.Mutex
	kicks       []string
	bans        []string
	deletes     []string
	permEdits   []string
	failKick    error
	failPermFor map[string]error
	blockKick   bool
}

func (f *fakeProvider) Kick(ctx context.Context, guildID, userID, reason string) error {
	if f.blockKick {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failKick != nil {
		return f.failKick
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, userID)
	return nil
}

func (f *fakeProvider) Ban(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans = append(f.bans, userID)
	return nil
}

func (f *fakeProvider) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeProvider) SetChannelSendPermission(ctx context.Context, channelID, roleID string, allowed bool) error {
	if err, ok := f.failPermFor[channelID]; ok {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permEdits = append(f.permEdits, channelID)
	return nil
}

type fakeLister struct {
	channels []Channel
	err      error
}

func (f *fakeLister) TextChannels(ctx context.Context, guildID string) ([]Channel, error) {
	return f.channels, f.err
}

func TestExecute_Kick(t *testing.T) {
	p := &fakeProvider{}
	e := New(p, nil, zap.NewNop())

	out := e.Execute(context.Background(), ActionKick, Target{GuildID: "g1", UserID: "u1"})

	if out.Err != nil || out.Succeeded != 1 {
		t.Errorf("Expected clean kick, got %+v", out)
	}
	if len(p.kicks) != 1 || p.kicks[0] != "u1" {
		t.Errorf("Provider saw kicks %v", p.kicks)
	}
}

func TestExecute_KickFailureIsContained(t *testing.T) {
	p := &fakeProvider{failKick: errors.New("missing permissions")}
	e := New(p, nil, zap.NewNop())

	out := e.Execute(context.Background(), ActionKick, Target{GuildID: "g1", UserID: "u1"})

	if out.Err == nil || out.Failed != 1 {
		t.Errorf("Expected contained failure, got %+v", out)
	}
}

func TestExecute_LockdownPartialFailure(t *testing.T) {
	channels := make([]Channel, 10)
	for i := range channels {
		channels[i] = Channel{ID: string(rune('a' + i))}
	}

	p := &fakeProvider{failPermFor: map[string]error{
		"c": errors.New("missing access"),
		"h": errors.New("missing access"),
	}}
	e := New(p, &fakeLister{channels: channels}, zap.NewNop())

	out := e.Execute(context.Background(), ActionLockdownGuild, Target{GuildID: "g1"})

	if out.Attempted != 10 || out.Succeeded != 8 || out.Failed != 2 {
		t.Errorf("Expected 8/10 locked, got %+v", out)
	}
	if !out.Partial() {
		t.Error("Outcome should report partial success, not abort")
	}
	if len(p.permEdits) != 8 {
		t.Errorf("Expected 8 permission edits, got %d", len(p.permEdits))
	}
}

func TestExecute_LockdownWithoutLister(t *testing.T) {
	e := New(&fakeProvider{}, nil, zap.NewNop())

	out := e.Execute(context.Background(), ActionLockdownGuild, Target{GuildID: "g1"})
	if !errors.Is(out.Err, ErrNoChannelLister) {
		t.Errorf("Expected ErrNoChannelLister, got %v", out.Err)
	}
}

func TestExecute_LockdownListFailure(t *testing.T) {
	e := New(&fakeProvider{}, &fakeLister{err: errors.New("api down")}, zap.NewNop())

	out := e.Execute(context.Background(), ActionLockdownGuild, Target{GuildID: "g1"})
	if out.Err == nil || out.Attempted != 0 {
		t.Errorf("Expected enumeration failure, got %+v", out)
	}
}

func TestExecute_CallTimeout(t *testing.T) {
	p := &fakeProvider{blockKick: true}
	e := New(p, nil, zap.NewNop())
	e.timeout = 50 * time.Millisecond

	start := time.Now()
	out := e.Execute(context.Background(), ActionKick, Target{GuildID: "g1", UserID: "u1"})

	if out.Err == nil {
		t.Error("Expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("Timeout took too long to fire")
	}
}
