package tools

import "fmt"

// ErrToolUnavailable is returned when a tool call targets a name that is
// not present in the registry. This indicates the model hallucinated a
// capability, not a transient execution failure; the orchestration loop
// reports it back to the model as a tool result rather than aborting.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}
