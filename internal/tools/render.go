package tools

import (
	"encoding/json"
	"fmt"
)

// JSONResult serializes a tool result payload for the model. Falls back
// to fmt formatting if the value cannot be marshaled, so a handler never
// fails just because of an awkward payload type.
func JSONResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// ErrorResult renders a domain-level failure as a payload the model can
// read and recover from. Lookup misses and bad arguments go through
// here; they are data for the model, not execution errors.
func ErrorResult(format string, args ...any) string {
	return JSONResult(map[string]any{"error": fmt.Sprintf(format, args...)})
}
