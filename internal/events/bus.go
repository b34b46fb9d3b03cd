// Package events replaces the "event emitter as superclass" pattern flagged
// in spec §9 with explicit per-component channel buses: every producer in
// the control plane (registry, balancer, proxy, roles, messaging, tasks)
// owns one Bus and calls Publish; every listener calls Subscribe and gets a
// cancel func, matching the teacher's channel-per-subscriber fan-out in
// internal/agenthub/broker.go and subscriber.go.
package events

import (
	"sort"
	"sync"
	"time"
)

// Event is the minimal envelope carried across every bus in the control
// plane: a type string drawn from the taxonomy in spec §6, a timestamp, and
// a free-form attribute map holding whichever ids/values the emitting
// component considers minimal for that event type.
type Event struct {
	Type      string
	Timestamp time.Time
	Attrs     map[string]string
}

// String renders a compact representation for logging, mirroring the
// teacher's generated-message String() convenience.
func (e Event) String() string {
	return e.Type
}

// Attr is a convenience accessor returning ("", false) for a missing key.
func (e Event) Attr(key string) (string, bool) {
	v, ok := e.Attrs[key]
	return v, ok
}

// Handler receives events delivered by a Bus. Handlers run on the
// publisher's goroutine for directed/ordered buses unless the bus
// documents otherwise; a slow handler delays other listeners, so handlers
// that do real work should hand off to their own goroutine.
type Handler func(Event)

// Bus is a minimal pub/sub fan-out: one per component, per spec §9's
// "explicit channels (bus listener sets) per component" guidance.
type Bus struct {
	mu        sync.RWMutex
	listeners map[int]Handler
	nextID    int
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Handler)}
}

// Subscribe registers handler for every event the Bus publishes and returns
// a cancel func that unregisters it. Subscribe is safe for concurrent use.
func (b *Bus) Subscribe(handler Handler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers evt to every current subscriber, in the order they
// subscribed. Publish never blocks on a handler's own I/O beyond the
// handler's own execution time: the bus itself does no buffering.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.listeners[id])
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// New is a small constructor for a populated Event, trimming call-site
// boilerplate across every emitting component.
func New(typ string, attrs map[string]string) Event {
	return Event{Type: typ, Timestamp: time.Now(), Attrs: attrs}
}
