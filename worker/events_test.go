package worker

import "testing"

func TestRegistrySnapshotOrder(t *testing.T) {
	var reg registry
	var order []string

	reg.setSlot(func(ev Event) { order = append(order, "slot") })
	reg.add(func(ev Event) { order = append(order, "first") })
	reg.add(func(ev Event) { order = append(order, "second") })

	for _, l := range reg.snapshot() {
		l(Event{Type: EventTypeMessage})
	}

	want := []string{"slot", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("invocations = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRegistryDuplicateEntries(t *testing.T) {
	var reg registry
	count := 0

	fn := func(ev Event) { count++ }
	reg.add(fn)
	reg.add(fn)

	for _, l := range reg.snapshot() {
		l(Event{})
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// Removal drops only the first matching entry
	reg.remove(fn)
	count = 0
	for _, l := range reg.snapshot() {
		l(Event{})
	}
	if count != 1 {
		t.Errorf("count after remove = %d, want 1", count)
	}
}

func TestRegistryRemoveMissing(t *testing.T) {
	var reg registry
	count := 0

	reg.add(func(ev Event) { count++ })
	reg.remove(func(ev Event) {})

	for _, l := range reg.snapshot() {
		l(Event{})
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestRegistryNilGuards(t *testing.T) {
	var reg registry

	reg.add(nil)
	reg.remove(nil)

	if got := len(reg.snapshot()); got != 0 {
		t.Errorf("snapshot length = %d, want 0", got)
	}
}

func TestRegistrySlotReplacementAndClear(t *testing.T) {
	var reg registry
	oldCount, newCount := 0, 0

	reg.setSlot(func(ev Event) { oldCount++ })
	reg.setSlot(func(ev Event) { newCount++ })

	for _, l := range reg.snapshot() {
		l(Event{})
	}
	if oldCount != 0 || newCount != 1 {
		t.Errorf("oldCount = %d, newCount = %d; want 0, 1", oldCount, newCount)
	}

	reg.setSlot(nil)
	if got := len(reg.snapshot()); got != 0 {
		t.Errorf("snapshot length after clear = %d, want 0", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Loading, "loading"},
		{Ready, "ready"},
		{Terminated, "terminated"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClonePayload(t *testing.T) {
	got, err := clonePayload(map[string]any{"n": 1, "s": "x"})
	if err != nil {
		t.Fatalf("clonePayload() error = %v", err)
	}

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("clonePayload() = %T, want map", got)
	}
	if m["n"] != float64(1) || m["s"] != "x" {
		t.Errorf("clonePayload() = %#v", m)
	}
}

func TestClonePayloadUncloneable(t *testing.T) {
	if _, err := clonePayload(make(chan int)); err == nil {
		t.Error("expected error for channel payload")
	}
	if _, err := clonePayload(func() {}); err == nil {
		t.Error("expected error for function payload")
	}
}
