package llm

import "github.com/google/uuid"

// EnsureToolCallIDs assigns a batch-unique identifier to every tool call
// that lacks one, and replaces duplicates within the batch. Clients call
// this once per parsed response, before any call reaches the loop, so the
// correlation invariant (one result per call, matched by ID) can never be
// broken by a provider that omits or repeats IDs.
func EnsureToolCallIDs(calls []ToolCall) {
	seen := make(map[string]bool, len(calls))
	for i := range calls {
		id := calls[i].ID
		if id == "" || seen[id] {
			id = "call_" + uuid.NewString()
		}
		seen[id] = true
		calls[i].ID = id
	}
}
