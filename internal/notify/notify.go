// Package notify raises one-shot event notifications. Fire-and-forget: no
// notifier waits for an acknowledgment.
package notify

import (
	"context"
	"time"

	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/motion"
)

// Event is one notification.
type Event struct {
	Name   string            `json:"event"`
	Time   string            `json:"time"` // RFC3339
	Fields map[string]string `json:"fields,omitempty"`
}

func NewEvent(name string, t time.Time) Event {
	return Event{Name: name, Time: t.UTC().Format(time.RFC3339Nano)}
}

// With returns a copy of e with one extra field.
func (e Event) With(key, value string) Event {
	fields := make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	e.Fields = fields
	return e
}

// Notifier receives events and, optionally, telemetry samples.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
	Telemetry(ctx context.Context, t time.Time, s motion.Sample)
}

// Console prints "Event: <name>" on the debug channel.
type Console struct {
	Debug channel.Channel
}

func (c Console) Notify(_ context.Context, ev Event) {
	_ = c.Debug.WriteLine("Event: " + ev.Name)
}

// Telemetry is not mirrored to the console; it would drown the log.
func (c Console) Telemetry(context.Context, time.Time, motion.Sample) {}

// Multi fans out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

func (m Multi) Telemetry(ctx context.Context, t time.Time, s motion.Sample) {
	for _, n := range m {
		n.Telemetry(ctx, t, s)
	}
}
