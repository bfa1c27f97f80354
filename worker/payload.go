package worker

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// clonePayload deep-copies a host payload into plain data via a JSON round
// trip, the value-copy stand-in for structured clone. Payloads that cannot
// be serialized (functions, channels, cycles) fail the call, mirroring the
// native primitive's DataCloneError.
func clonePayload(data any) (any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("payload could not be cloned: %w", err)
	}

	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("payload could not be cloned: %w", err)
	}
	return out, nil
}

// exportPayload copies a context-side value out of the VM as plain data,
// detaching it from the VM so the host never aliases script state.
func exportPayload(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return clonePayload(v.Export())
}
