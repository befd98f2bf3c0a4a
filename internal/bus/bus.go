// Package bus is the in-process publish/subscribe fabric that fans track,
// task, and telemetry changes out to streaming subscribers. Delivery is
// best-effort: handler panics are swallowed and slow channel subscribers
// lose events rather than blocking the publisher.
package bus

import (
	"log/slog"
	"sync"
)

// Event types form a closed set; everything on the bus carries one of
// these discriminators.
const (
	EventTrack          = "track"
	EventTask           = "task"
	EventTaskUpdate     = "task_update"
	EventTaskAck        = "task_ack"
	EventAssetTelemetry = "asset_telemetry"
)

// Event is a tagged record published on the bus.
type Event struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id,omitempty"`
	Data     any    `json:"data"`
}

// Handler consumes published events synchronously.
type Handler func(Event)

// Subscriber receives events on a bounded channel. Events are dropped when
// the channel is full.
type Subscriber struct {
	C chan Event
}

// Bus is the process-wide event bus. Constructed once at startup and
// passed by reference.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler

	watchMu sync.RWMutex
	subs    []*Subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe appends a handler. Handlers run in registration order on every
// publish.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	n := len(b.handlers)
	b.mu.Unlock()
	slog.Info("bus subscriber added", "total", n)
}

// Publish delivers an event to every handler in order, then to every
// channel subscriber. A panicking handler is logged and skipped; it never
// interrupts the fan-out.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}

	b.watchMu.RLock()
	for _, s := range b.subs {
		select {
		case s.C <- event:
		default:
			// Subscriber is backed up; drop rather than block.
		}
	}
	b.watchMu.RUnlock()
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event_type", event.Type, "panic", r)
		}
	}()
	h(event)
}

// Watch attaches a bounded channel subscriber. The caller must Unwatch when
// done.
func (b *Bus) Watch(buffer int) *Subscriber {
	s := &Subscriber{C: make(chan Event, buffer)}
	b.watchMu.Lock()
	b.subs = append(b.subs, s)
	b.watchMu.Unlock()
	return s
}

// Unwatch detaches a subscriber and closes its channel. Safe to call while
// publishes are in flight; unread events are discarded.
func (b *Bus) Unwatch(s *Subscriber) {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()

	for i, existing := range b.subs {
		if existing == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.C)
			return
		}
	}
}
