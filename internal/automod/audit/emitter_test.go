package audit

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type captureSink struct {
	mu      sync.Mutex
	records []Record
}

func (c *captureSink) Append(_ string, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureNotifier) Publish(_ string, alert Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
}

type panicSink struct{}

func (panicSink) Append(string, Record) { panic("sink exploded") }

func TestEmitter_DeliversToAllSinks(t *testing.T) {
	s1 := &captureSink{}
	s2 := &captureSink{}
	n := &captureNotifier{}
	e := NewEmitter(zap.NewNop(), []Sink{s1, s2}, []Notifier{n})

	e.Emit("guild1", Record{Type: "raid", Timestamp: time.Now()}, &Alert{GuildID: "guild1", Type: "raid"})
	e.Emit("guild1", Record{Type: "violation", Timestamp: time.Now()}, nil)
	e.Close()

	if len(s1.records) != 2 || len(s2.records) != 2 {
		t.Errorf("Expected both sinks to see 2 records, got %d/%d", len(s1.records), len(s2.records))
	}
	if len(n.alerts) != 1 {
		t.Errorf("Expected 1 alert (nil alerts are not published), got %d", len(n.alerts))
	}
}

func TestEmitter_SinkPanicIsContained(t *testing.T) {
	good := &captureSink{}
	e := NewEmitter(zap.NewNop(), []Sink{panicSink{}, good}, nil)

	e.Emit("guild1", Record{Type: "raid", Timestamp: time.Now()}, nil)
	e.Close()

	if len(good.records) != 1 {
		t.Errorf("A panicking sink must not starve its siblings, got %d records", len(good.records))
	}
}

func TestEmitter_CloseIsIdempotent(t *testing.T) {
	e := NewEmitter(zap.NewNop(), nil, nil)
	e.Close()
	e.Close()
}

func TestEmitter_EmitAfterCloseIsSafe(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(zap.NewNop(), []Sink{sink}, nil)

	e.Emit("guild1", Record{Type: "raid", Timestamp: time.Now()}, nil)
	e.Close()

	// Gateway handlers stay registered while the rest of shutdown runs, so
	// late events still reach Emit. They must be dropped, not panic.
	e.Emit("guild1", Record{Type: "violation", Timestamp: time.Now()}, nil)

	if len(sink.records) != 1 {
		t.Errorf("Expected only the pre-close record to land, got %d", len(sink.records))
	}
}

// gatedSink blocks inside Append until released, pinning the worker so the
// queue can be filled deterministically.
type gatedSink struct {
	captureSink
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSink) Append(guildID string, rec Record) {
	g.entered <- struct{}{}
	<-g.release
	g.captureSink.Append(guildID, rec)
}

func TestEmitter_FullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &gatedSink{entered: make(chan struct{}, 4), release: make(chan struct{})}
	e := newEmitter(zap.NewNop(), []Sink{sink}, nil, 1)

	e.Emit("guild1", Record{Type: "raid", Timestamp: time.Now()}, nil)
	<-sink.entered // worker is now stuck inside the sink

	e.Emit("guild1", Record{Type: "violation", Timestamp: time.Now()}, nil) // fills the buffer

	done := make(chan struct{})
	go func() {
		e.Emit("guild1", Record{Type: "violation", Timestamp: time.Now()}, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(sink.release)
	e.Close()

	if got := len(sink.records); got != 2 {
		t.Errorf("Expected 2 delivered and 1 dropped, got %d delivered", got)
	}
}
