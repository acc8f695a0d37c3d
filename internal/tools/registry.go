// Package tools provides the tool registry and execution framework.
//
// The registry is assembled once at startup and sealed before the first
// query is served. After sealing it is read-only, so concurrent queries
// can share it without locking, and Specs/Descriptions always enumerate
// tools in registration order.
package tools

import (
	"context"
	"fmt"
	"strings"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools in registration order.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	sealed bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Names must be unique, and
// registration is rejected once the registry is sealed.
func (r *Registry) Register(t *Tool) error {
	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot register %q", t.Name)
	}
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Seal marks the registry immutable. Call after all tools are registered
// and before the first query is served.
func (r *Registry) Seal() {
	r.sealed = true
}

// Get retrieves a tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Specs returns all tool definitions for the LLM, in registration order.
func (r *Registry) Specs() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Descriptions renders a "- name: description" line per tool, in
// registration order, for embedding in the system prompt.
func (r *Registry) Descriptions() string {
	var b strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Execute runs a tool by name with the given arguments.
// An unregistered name returns *ErrToolUnavailable.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	return tool.Handler(ctx, args)
}
