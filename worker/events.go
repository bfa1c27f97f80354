package worker

import "reflect"

// Event types dispatched to the host.
const (
	EventTypeMessage = "message"
	EventTypeError   = "error"
)

// Event is a host-facing event. Message events carry the relayed payload in
// Data; error events carry Type "error" and a human-readable Message,
// whether they originate from a load failure, an evaluation failure, or a
// throwing handler inside the context.
type Event struct {
	Type    string
	Data    any
	Message string
}

// Listener is a host-facing event listener.
type Listener func(Event)

// listenerEntry is one registered listener. Entries keep registration order
// and duplicates are kept distinctly.
type listenerEntry struct {
	id int
	fn Listener
}

// registry holds the listeners for one event type: an ordered list plus one
// optional slot handler (the onmessage/onerror property analogue).
type registry struct {
	slot   Listener
	list   []listenerEntry
	nextID int
}

// add appends a listener. The same function may be added more than once.
func (r *registry) add(fn Listener) {
	if fn == nil {
		return
	}
	r.nextID++
	r.list = append(r.list, listenerEntry{id: r.nextID, fn: fn})
}

// remove unregisters the first entry matching fn by function identity.
// Removing a listener that is not registered is a no-op.
func (r *registry) remove(fn Listener) {
	if fn == nil {
		return
	}
	ptr := reflect.ValueOf(fn).Pointer()
	for i, entry := range r.list {
		if reflect.ValueOf(entry.fn).Pointer() == ptr {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return
		}
	}
}

// setSlot assigns the slot handler; nil clears it. Last assignment wins.
func (r *registry) setSlot(fn Listener) {
	r.slot = fn
}

// snapshot returns the handlers to invoke for one event occurrence: the
// slot handler (if set) followed by every listed listener in registration
// order.
func (r *registry) snapshot() []Listener {
	fns := make([]Listener, 0, len(r.list)+1)
	if r.slot != nil {
		fns = append(fns, r.slot)
	}
	for _, entry := range r.list {
		fns = append(fns, entry.fn)
	}
	return fns
}
