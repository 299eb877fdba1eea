// Package events provides a minimal typed publish/subscribe emitter. The
// viewer uses one emitter per instance; payloads are typed per event name.
package events

import "sync"

// Type names an event stream.
type Type string

// Handler receives an event payload. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(payload interface{})

type subscription struct {
	id int
	fn Handler
}

// Emitter dispatches payloads to subscribed handlers. Safe for concurrent
// subscription; emission order follows subscription order.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[Type][]subscription
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[Type][]subscription)}
}

// On subscribes fn to events of type t and returns an unsubscribe function.
// Unsubscribing twice is a no-op.
func (e *Emitter) On(t Type, fn Handler) (off func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs[t] = append(e.subs[t], subscription{id: id, fn: fn})
	e.mu.Unlock()
	return func() { e.off(t, id) }
}

func (e *Emitter) off(t Type, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[t]
	for i, s := range subs {
		if s.id == id {
			e.subs[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every handler subscribed to t at call time.
func (e *Emitter) Emit(t Type, payload interface{}) {
	e.mu.Lock()
	subs := e.subs[t]
	e.mu.Unlock()
	for _, s := range subs {
		s.fn(payload)
	}
}

// Clear drops all subscriptions.
func (e *Emitter) Clear() {
	e.mu.Lock()
	e.subs = make(map[Type][]subscription)
	e.mu.Unlock()
}
