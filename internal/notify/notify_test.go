package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/motion"
)

type doneToken struct {
	done chan struct{}
	err  error
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, payload: payload.([]byte)})
	return newDoneToken(p.err)
}

func TestConsoleNotify(t *testing.T) {
	debug := channel.NewMemory("debug")
	Console{Debug: debug}.Notify(context.Background(), NewEvent("GESTURE_CAPTURE", time.Now()))
	Console{Debug: debug}.Telemetry(context.Background(), time.Now(), motion.Sample{})
	if w := debug.Written(); len(w) != 1 || w[0] != "Event: GESTURE_CAPTURE" {
		t.Fatalf("debug got %v", w)
	}
}

func TestMQTTPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTT(pub, "heysalad/events", "heysalad/telemetry", zap.NewNop())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	n.Notify(context.Background(), NewEvent("AUDIO_READY", at).With("samples", "16000"))
	n.Telemetry(context.Background(), at, motion.NewSample(0, 0, 1))

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	if pub.msgs[0].topic != "heysalad/events" {
		t.Fatalf("event topic = %s", pub.msgs[0].topic)
	}
	var ev Event
	if err := json.Unmarshal(pub.msgs[0].payload, &ev); err != nil {
		t.Fatalf("event json: %v", err)
	}
	if ev.Name != "AUDIO_READY" || ev.Fields["samples"] != "16000" {
		t.Fatalf("event = %+v", ev)
	}

	var tp TelemetryPayload
	if err := json.Unmarshal(pub.msgs[1].payload, &tp); err != nil {
		t.Fatalf("telemetry json: %v", err)
	}
	if tp.Z != 1 || tp.Magnitude != 1 || pub.msgs[1].topic != "heysalad/telemetry" {
		t.Fatalf("telemetry = %+v on %s", tp, pub.msgs[1].topic)
	}
}

func TestMQTTPublishErrorDoesNotBlock(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	n := NewMQTT(pub, "e", "", zap.NewNop())
	n.Notify(context.Background(), NewEvent("GESTURE_RECIPE", time.Now()))
	n.Telemetry(context.Background(), time.Now(), motion.Sample{})
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d, want 1 (telemetry topic disabled)", len(pub.msgs))
	}
}

func TestMultiFansOut(t *testing.T) {
	a := channel.NewMemory("a")
	b := channel.NewMemory("b")
	Multi{Console{Debug: a}, Console{Debug: b}}.Notify(context.Background(), NewEvent("X", time.Now()))
	if len(a.Written()) != 1 || len(b.Written()) != 1 {
		t.Fatal("multi did not fan out")
	}
}

func TestEventWithCopies(t *testing.T) {
	base := NewEvent("X", time.Now()).With("a", "1")
	derived := base.With("b", "2")
	if _, ok := base.Fields["b"]; ok {
		t.Fatal("With mutated the original")
	}
	if derived.Fields["a"] != "1" || derived.Fields["b"] != "2" {
		t.Fatalf("derived = %+v", derived.Fields)
	}
}
