package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func testTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "tool " + name,
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ran " + name, nil
		},
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"get_product_info", "list_products", "get_inventory_level", "query_internal_documents"}
	for _, n := range names {
		if err := r.Register(testTool(n)); err != nil {
			t.Fatalf("Register(%q): %v", n, err)
		}
	}

	got := r.Names()
	for i, n := range names {
		if got[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], n)
		}
	}

	// Specs enumerate in the same order.
	specs := r.Specs()
	if len(specs) != len(names) {
		t.Fatalf("Specs() len = %d, want %d", len(specs), len(names))
	}
	for i, spec := range specs {
		fn := spec["function"].(map[string]any)
		if fn["name"] != names[i] {
			t.Errorf("Specs()[%d] name = %v, want %q", i, fn["name"], names[i])
		}
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testTool("list_products")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(testTool("list_products")); err == nil {
		t.Error("duplicate registration should fail")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistrySeal(t *testing.T) {
	r := NewRegistry()
	r.Register(testTool("get_sales_data_for_product"))
	r.Seal()

	if err := r.Register(testTool("late_tool")); err == nil {
		t.Error("registration after Seal should fail")
	}
	if r.Get("get_sales_data_for_product") == nil {
		t.Error("sealed registry should still serve lookups")
	}
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "echo",
		Description: "echoes its input",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%v", args["text"]), nil
		},
	})

	out, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if out != "hi" {
		t.Errorf("Execute = %q, want %q", out, "hi")
	}
}

func TestRegistryExecute_NilArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:       "check",
		Parameters: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if args == nil {
				return "", errors.New("args should never be nil")
			}
			return "ok", nil
		},
	})

	if _, err := r.Execute(context.Background(), "check", nil); err != nil {
		t.Errorf("Execute with nil args: %v", err)
	}
}

func TestRegistryExecute_Unknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nonexistent_tool", nil)

	var unavail *ErrToolUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("error = %v, want *ErrToolUnavailable", err)
	}
	if unavail.ToolName != "nonexistent_tool" {
		t.Errorf("ToolName = %q", unavail.ToolName)
	}
}

func TestDescriptions(t *testing.T) {
	r := NewRegistry()
	r.Register(testTool("get_product_info"))
	r.Register(testTool("list_products"))

	got := r.Descriptions()
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "- get_product_info:") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "- list_products:") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestJSONResult(t *testing.T) {
	got := JSONResult(map[string]any{"quantity": 42})
	if got != `{"quantity":42}` {
		t.Errorf("JSONResult = %q", got)
	}

	// Unmarshalable values fall back to fmt formatting.
	got = JSONResult(make(chan int))
	if got == "" || strings.HasPrefix(got, "{") {
		t.Errorf("fallback rendering = %q", got)
	}
}

func TestErrorResult(t *testing.T) {
	got := ErrorResult("Product %s not found", "P999")

	var payload map[string]string
	if err := jsonUnmarshal(got, &payload); err != nil {
		t.Fatalf("ErrorResult produced invalid JSON: %q", got)
	}
	if payload["error"] != "Product P999 not found" {
		t.Errorf("error = %q", payload["error"])
	}
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
