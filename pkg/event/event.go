// Package event provides a lightweight notification fabric for the app.
//
// Design principles:
//   - Each event type is a separate Go type for type safety
//   - Services emit after mutating state; the webview either refetches over
//     HTTP or reads the payload of small events directly
//   - The emitter is constructed once at startup and injected; there is no
//     package-level singleton
package event

import (
	"log/slog"
	"sync"
)

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "conversation.upserted")
	EventName() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

// Emitter manages event subscriptions and dispatching.
type Emitter struct {
	mu           sync.RWMutex
	listeners    map[string][]*entry // eventName -> listeners
	allListeners []*entry            // listeners for all events
	logger       *slog.Logger
}

type entry struct {
	fn Listener
}

// NewEmitter creates a new event emitter.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{
		listeners: make(map[string][]*entry),
		logger:    logger,
	}
}

// On subscribes to a specific event type.
// Returns an unsubscribe function.
func (e *Emitter) On(eventName string, fn Listener) func() {
	en := &entry{fn: fn}
	e.mu.Lock()
	e.listeners[eventName] = append(e.listeners[eventName], en)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		listeners := e.listeners[eventName]
		for i, l := range listeners {
			if l == en {
				e.listeners[eventName] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// OnAny subscribes to all events.
func (e *Emitter) OnAny(fn Listener) func() {
	en := &entry{fn: fn}
	e.mu.Lock()
	e.allListeners = append(e.allListeners, en)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.allListeners {
			if l == en {
				e.allListeners = append(e.allListeners[:i], e.allListeners[i+1:]...)
				break
			}
		}
	}
}

// Emit dispatches an event to all matching listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy listeners to avoid holding lock during callbacks
	specific := make([]*entry, len(e.listeners[ev.EventName()]))
	copy(specific, e.listeners[ev.EventName()])
	all := make([]*entry, len(e.allListeners))
	copy(all, e.allListeners)
	e.mu.RUnlock()

	if e.logger != nil {
		e.logger.Debug("emitting event", "event", ev.EventName(),
			"specific", len(specific), "wildcard", len(all))
	}

	for _, l := range specific {
		l.fn(ev)
	}
	for _, l := range all {
		l.fn(ev)
	}
}
