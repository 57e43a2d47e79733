package event

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Handler receives an event.
type Handler func(Event)

type subscription struct {
	id      string
	kind    Kind
	handler Handler
}

// wildcard is the subscription key for SubscribeAll handlers.
const wildcard Kind = "*"

// Emitter is a synchronous typed publisher for relation events.
//
// Handlers for a specific kind run first, then wildcard handlers. Within each
// group handlers run in registration order. A panicking handler is logged and
// skipped; delivery continues to the rest.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscription
	nextID atomic.Uint64
	logger *slog.Logger
}

// NewEmitter creates an emitter. A nil logger falls back to slog.Default().
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		subs:   make(map[Kind][]subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for one kind and returns its subscription ID.
func (e *Emitter) Subscribe(kind Kind, handler Handler) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := fmt.Sprintf("sub-%d", e.nextID.Add(1))
	e.subs[kind] = append(e.subs[kind], subscription{id: id, kind: kind, handler: handler})
	return id
}

// SubscribeAll registers a handler for every kind.
func (e *Emitter) SubscribeAll(handler Handler) string {
	return e.Subscribe(wildcard, handler)
}

// OnAvailable registers a typed handler for Available events.
func (e *Emitter) OnAvailable(fn func(Available)) string {
	return e.Subscribe(KindAvailable, func(ev Event) { fn(ev.(Available)) })
}

// OnInvalid registers a typed handler for Invalid events.
func (e *Emitter) OnInvalid(fn func(Invalid)) string {
	return e.Subscribe(KindInvalid, func(ev Event) { fn(ev.(Invalid)) })
}

// OnBroken registers a typed handler for Broken events.
func (e *Emitter) OnBroken(fn func(Broken)) string {
	return e.Subscribe(KindBroken, func(ev Event) { fn(ev.(Broken)) })
}

// Unsubscribe removes a subscription. It reports whether the ID was found.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for kind, subs := range e.subs {
		for i, sub := range subs {
			if sub.id == id {
				e.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit delivers ev to its kind's handlers and then to wildcard handlers.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	specific := append([]subscription(nil), e.subs[ev.Kind()]...)
	all := append([]subscription(nil), e.subs[wildcard]...)
	e.mu.RUnlock()

	for _, sub := range specific {
		e.safeCall(sub.handler, ev)
	}
	for _, sub := range all {
		e.safeCall(sub.handler, ev)
	}
}

func (e *Emitter) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				"kind", string(ev.Kind()),
				"relation", ev.Relation().String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(ev)
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, subs := range e.subs {
		n += len(subs)
	}
	return n
}
