package js

import (
	"testing"

	"github.com/dop251/goja"
)

// newTestTarget returns a runtime and an event target with helpers to
// register JS listeners.
func newTestTarget(t *testing.T) (*Runtime, *EventTarget) {
	t.Helper()
	return NewRuntime(), NewEventTarget()
}

// registerCounter registers a JS function that increments the named global
// counter and returns its value for later removal.
func registerCounter(t *testing.T, r *Runtime, et *EventTarget, eventType, counter string) goja.Value {
	t.Helper()

	r.vm.Set(counter, 0)
	fn, err := r.Execute("(function() { " + counter + "++; })")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	callback, ok := goja.AssertFunction(fn)
	if !ok {
		t.Fatal("expected a function")
	}

	et.AddEventListener(eventType, callback, fn, false)
	return fn
}

func counterValue(t *testing.T, r *Runtime, counter string) int64 {
	t.Helper()
	v, err := r.Execute(counter)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return v.ToInteger()
}

func newEvent(r *Runtime, eventType string) *goja.Object {
	event := r.vm.NewObject()
	event.Set("type", eventType)
	return event
}

func TestEventTargetDispatch(t *testing.T) {
	r, et := newTestTarget(t)
	registerCounter(t, r, et, "message", "count")

	if errs := et.Dispatch(newEvent(r, "message")); len(errs) != 0 {
		t.Fatalf("Dispatch errors = %v", errs)
	}

	if got := counterValue(t, r, "count"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestEventTargetSlotAndListenersAllFire(t *testing.T) {
	r, et := newTestTarget(t)

	registerCounter(t, r, et, "message", "a")
	registerCounter(t, r, et, "message", "b")

	// Slot handler fires in addition to every listener
	r.vm.Set("slotCount", 0)
	slotVal, err := r.Execute("(function() { slotCount++; })")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	slotFn, _ := goja.AssertFunction(slotVal)
	et.SetHandler("message", slotVal, slotFn)

	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "a"); got != 1 {
		t.Errorf("a = %d, want 1", got)
	}
	if got := counterValue(t, r, "b"); got != 1 {
		t.Errorf("b = %d, want 1", got)
	}
	if got := counterValue(t, r, "slotCount"); got != 1 {
		t.Errorf("slotCount = %d, want 1", got)
	}
}

func TestEventTargetDuplicateListeners(t *testing.T) {
	r, et := newTestTarget(t)

	r.vm.Set("count", 0)
	fn, err := r.Execute("(function() { count++; })")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	callback, _ := goja.AssertFunction(fn)

	// Same function registered twice yields two distinct entries
	et.AddEventListener("message", callback, fn, false)
	et.AddEventListener("message", callback, fn, false)

	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "count"); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}

	// Removing once drops one entry, not both
	et.RemoveEventListener("message", fn)
	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "count"); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestEventTargetRemoveMissingIsNoop(t *testing.T) {
	r, et := newTestTarget(t)
	registerCounter(t, r, et, "message", "count")

	other, err := r.Execute("(function() {})")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	et.RemoveEventListener("message", other)
	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "count"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestEventTargetRegistrationOrder(t *testing.T) {
	r, et := newTestTarget(t)

	if _, err := r.Execute("var order = [];"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, label := range []string{"first", "second", "third"} {
		fn, err := r.Execute("(function() { order.push('" + label + "'); })")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		callback, _ := goja.AssertFunction(fn)
		et.AddEventListener("message", callback, fn, false)
	}

	et.Dispatch(newEvent(r, "message"))

	result, err := r.Execute("order.join(',')")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "first,second,third" {
		t.Errorf("order = %q, want %q", result.String(), "first,second,third")
	}
}

func TestEventTargetSlotReplacement(t *testing.T) {
	r, et := newTestTarget(t)

	r.vm.Set("a", 0)
	r.vm.Set("b", 0)

	fnA, _ := r.Execute("(function() { a++; })")
	cbA, _ := goja.AssertFunction(fnA)
	fnB, _ := r.Execute("(function() { b++; })")
	cbB, _ := goja.AssertFunction(fnB)

	// Last assignment wins
	et.SetHandler("message", fnA, cbA)
	et.SetHandler("message", fnB, cbB)
	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "a"); got != 0 {
		t.Errorf("a = %d, want 0", got)
	}
	if got := counterValue(t, r, "b"); got != 1 {
		t.Errorf("b = %d, want 1", got)
	}

	// Clearing the slot stops dispatch to it
	et.SetHandler("message", nil, nil)
	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "b"); got != 1 {
		t.Errorf("b = %d, want 1 after clear", got)
	}
}

func TestEventTargetThrowingListener(t *testing.T) {
	r, et := newTestTarget(t)

	throwing, err := r.Execute("(function() { throw new Error('handler exploded'); })")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	throwCb, _ := goja.AssertFunction(throwing)
	et.AddEventListener("message", throwCb, throwing, false)

	registerCounter(t, r, et, "message", "after")

	errs := et.Dispatch(newEvent(r, "message"))

	if len(errs) != 1 {
		t.Fatalf("Dispatch errors = %d, want 1", len(errs))
	}

	// The throw did not prevent the later listener from firing
	if got := counterValue(t, r, "after"); got != 1 {
		t.Errorf("after = %d, want 1", got)
	}
}

func TestEventTargetOnceListener(t *testing.T) {
	r, et := newTestTarget(t)

	r.vm.Set("count", 0)
	fn, _ := r.Execute("(function() { count++; })")
	callback, _ := goja.AssertFunction(fn)
	et.AddEventListener("message", callback, fn, true)

	et.Dispatch(newEvent(r, "message"))
	et.Dispatch(newEvent(r, "message"))

	if got := counterValue(t, r, "count"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestEventTargetHasListeners(t *testing.T) {
	r, et := newTestTarget(t)

	if et.HasListeners("message") {
		t.Error("expected no listeners initially")
	}

	fn := registerCounter(t, r, et, "message", "count")
	if !et.HasListeners("message") {
		t.Error("expected listeners after registration")
	}

	et.RemoveEventListener("message", fn)
	if et.HasListeners("message") {
		t.Error("expected no listeners after removal")
	}
}
