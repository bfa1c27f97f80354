package js

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// eventListener represents a registered event listener.
type eventListener struct {
	id       int
	callback goja.Callable
	value    goja.Value // Original value for removal comparison
	once     bool
}

// slotHandler is the single-assignment handler property for an event type
// (onmessage/onerror). Last assignment wins; assigning a non-function
// clears it.
type slotHandler struct {
	callback goja.Callable
	value    goja.Value
}

// EventTarget manages event listeners for the worker-side scope. Each event
// type carries an ordered listener list plus one optional slot handler.
// Duplicate listener registrations are kept distinctly; dispatch delivers
// the event to the slot and to every listener, in registration order.
type EventTarget struct {
	listeners map[string][]eventListener
	slots     map[string]slotHandler
	nextID    int
	mu        sync.Mutex
}

// NewEventTarget creates a new EventTarget.
func NewEventTarget() *EventTarget {
	return &EventTarget{
		listeners: make(map[string][]eventListener),
		slots:     make(map[string]slotHandler),
	}
}

// AddEventListener registers an event listener. Registering the same
// function twice yields two distinct entries.
func (et *EventTarget) AddEventListener(eventType string, callback goja.Callable, value goja.Value, once bool) {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.nextID++
	et.listeners[eventType] = append(et.listeners[eventType], eventListener{
		id:       et.nextID,
		callback: callback,
		value:    value,
		once:     once,
	})
}

// RemoveEventListener unregisters the first matching listener entry.
// Removing a listener that is not registered is a no-op.
func (et *EventTarget) RemoveEventListener(eventType string, value goja.Value) {
	et.mu.Lock()
	defer et.mu.Unlock()

	listeners := et.listeners[eventType]
	for i, l := range listeners {
		if l.value.SameAs(value) {
			et.listeners[eventType] = append(listeners[:i], listeners[i+1:]...)
			return
		}
	}
}

// SetHandler assigns the slot handler for an event type. A nil callback
// clears the slot.
func (et *EventTarget) SetHandler(eventType string, value goja.Value, callback goja.Callable) {
	et.mu.Lock()
	defer et.mu.Unlock()

	if callback == nil {
		delete(et.slots, eventType)
		return
	}
	et.slots[eventType] = slotHandler{callback: callback, value: value}
}

// Handler returns the current slot handler value for an event type, or
// nil when unset.
func (et *EventTarget) Handler(eventType string) goja.Value {
	et.mu.Lock()
	defer et.mu.Unlock()

	if slot, ok := et.slots[eventType]; ok {
		return slot.value
	}
	return nil
}

// HasListeners returns true if the event type has a slot handler or any
// registered listeners.
func (et *EventTarget) HasListeners(eventType string) bool {
	et.mu.Lock()
	defer et.mu.Unlock()
	_, hasSlot := et.slots[eventType]
	return hasSlot || len(et.listeners[eventType]) > 0
}

// Dispatch delivers an event object to the slot handler and to every
// registered listener for the event's type. A throwing handler does not
// prevent later handlers from running; every throw is collected and
// returned.
func (et *EventTarget) Dispatch(event *goja.Object) []error {
	eventType := event.Get("type").String()

	et.mu.Lock()
	slot, hasSlot := et.slots[eventType]
	listeners := make([]eventListener, len(et.listeners[eventType]))
	copy(listeners, et.listeners[eventType])
	et.mu.Unlock()

	var errs []error

	if hasSlot {
		if err := callListener(slot.callback, event); err != nil {
			errs = append(errs, err)
		}
	}

	var toRemove []eventListener
	for _, l := range listeners {
		if err := callListener(l.callback, event); err != nil {
			errs = append(errs, err)
		}
		if l.once {
			toRemove = append(toRemove, l)
		}
	}

	if len(toRemove) > 0 {
		et.mu.Lock()
		for _, l := range toRemove {
			listeners := et.listeners[eventType]
			for i, existing := range listeners {
				if existing.id == l.id {
					et.listeners[eventType] = append(listeners[:i], listeners[i+1:]...)
					break
				}
			}
		}
		et.mu.Unlock()
	}

	return errs
}

// Clear removes all listeners and slot handlers.
func (et *EventTarget) Clear() {
	et.mu.Lock()
	defer et.mu.Unlock()
	et.listeners = make(map[string][]eventListener)
	et.slots = make(map[string]slotHandler)
}

// callListener invokes a listener, converting panics in the goja runtime
// into errors.
func callListener(callback goja.Callable, event *goja.Object) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()

	_, err = callback(goja.Undefined(), event)
	return err
}
