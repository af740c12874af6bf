// Package events provides the notification bus that connects the speech
// components to the bound UI, metrics and tracing.
//
// Unlike a fire-and-forget pub/sub, delivery is synchronous and in publish
// order on the publisher's goroutine: a "stopped" notification for the
// previous message always reaches listeners before the "playing" notification
// for the next one. Listeners must therefore be quick and must not block.
package events

import (
	"sync"
)

// Listener is a function that handles events.
type Listener func(*Event)

type subscription struct {
	id       uint64
	listener Listener
}

// EventBus manages event distribution to listeners.
type EventBus struct {
	mu              sync.RWMutex
	nextID          uint64
	listeners       map[EventType][]subscription
	globalListeners []subscription
	closed          bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]subscription),
	}
}

// Subscribe registers a listener for a specific event type and returns a
// function that removes it.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], subscription{id: id, listener: listener})
	return func() { eb.unsubscribe(eventType, id, false) }
}

// SubscribeAll registers a listener for all event types and returns a
// function that removes it.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, subscription{id: id, listener: listener})
	return func() { eb.unsubscribe("", id, true) }
}

func (eb *EventBus) unsubscribe(eventType EventType, id uint64, global bool) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	remove := func(subs []subscription) []subscription {
		out := subs[:0:0]
		for _, s := range subs {
			if s.id != id {
				out = append(out, s)
			}
		}
		return out
	}

	if global {
		eb.globalListeners = remove(eb.globalListeners)
		return
	}
	eb.listeners[eventType] = remove(eb.listeners[eventType])
}

// Publish delivers event to the type listeners, then to the global
// listeners. It returns false when the bus is closed or the event is nil.
// A panicking listener does not prevent the others from running.
func (eb *EventBus) Publish(event *Event) bool {
	if event == nil {
		return false
	}

	eb.mu.RLock()
	if eb.closed {
		eb.mu.RUnlock()
		return false
	}
	typeListeners := eb.listeners[event.Type]
	specific := make([]subscription, len(typeListeners))
	copy(specific, typeListeners)
	global := make([]subscription, len(eb.globalListeners))
	copy(global, eb.globalListeners)
	eb.mu.RUnlock()

	for _, s := range specific {
		safeInvoke(s.listener, event)
	}
	for _, s := range global {
		safeInvoke(s.listener, event)
	}
	return true
}

// Close stops delivery. Further publishes are dropped. Close is idempotent.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.closed = true
	eb.listeners = make(map[EventType][]subscription)
	eb.globalListeners = nil
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
