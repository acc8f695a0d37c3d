package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/merchantlabs/coo-agent/internal/tools"
)

func testRegistry(t *testing.T, s *Store) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	if err := RegisterTools(reg, s); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}
	return reg
}

func TestToolRegistrationOrder(t *testing.T) {
	reg := testRegistry(t, testCatalog(t))

	want := []string{
		"get_product_info",
		"list_products",
		"get_inventory_level",
		"list_low_stock_products",
		"get_sales_data_for_product",
		"estimate_days_of_stock_remaining",
		"get_top_selling_products",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("got %d tools, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProductInfoTool(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	reg := testRegistry(t, s)
	ctx := context.Background()

	out, err := reg.Execute(ctx, "get_product_info", map[string]any{"product_id": "P100"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var p Product
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("output not JSON: %q", out)
	}
	if p.Name != "Canvas Tote" {
		t.Errorf("product = %+v", p)
	}

	// Lookup miss is data, not an execution error.
	out, err = reg.Execute(ctx, "get_product_info", map[string]any{"product_id": "P999"})
	if err != nil {
		t.Fatalf("Execute miss: %v", err)
	}
	if !strings.Contains(out, "Product with ID P999 not found") {
		t.Errorf("miss payload = %q", out)
	}
}

func TestInventoryLevelTool(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	reg := testRegistry(t, s)

	out, err := reg.Execute(context.Background(), "get_inventory_level",
		map[string]any{"product_id": "P100"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var inv InventoryLevel
	json.Unmarshal([]byte(out), &inv)
	if inv.Quantity != 42 {
		t.Errorf("quantity = %d, want 42", inv.Quantity)
	}
}

func TestListProductsTool_EmptyIsArray(t *testing.T) {
	reg := testRegistry(t, testCatalog(t))

	out, err := reg.Execute(context.Background(), "list_products", map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "[]" {
		t.Errorf("empty listing = %q, want []", out)
	}
}

func TestSalesDataTool(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	reg := testRegistry(t, s)
	ctx := context.Background()

	// Model sends numeric args as JSON numbers (float64).
	out, err := reg.Execute(ctx, "get_sales_data_for_product",
		map[string]any{"product_id": "P100", "days": float64(30)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var sum SalesSummary
	json.Unmarshal([]byte(out), &sum)
	if sum.TotalUnitsSold != 20 {
		t.Errorf("summary = %+v", sum)
	}

	// No sales for this product: informational payload, not an error.
	out, _ = reg.Execute(ctx, "get_sales_data_for_product",
		map[string]any{"product_id": "P200"})
	if !strings.Contains(out, "No sales for product P200 in the last 30 days") {
		t.Errorf("zero-sales payload = %q", out)
	}
	if strings.Contains(out, `"error"`) {
		t.Errorf("zero sales should not be an error payload: %q", out)
	}
}

func TestDaysOfStockTool(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	reg := testRegistry(t, s)
	ctx := context.Background()

	// P100: 42 units, 20 sold over 30 days → 63 days remaining.
	out, err := reg.Execute(ctx, "estimate_days_of_stock_remaining",
		map[string]any{"product_id": "P100"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var est map[string]any
	json.Unmarshal([]byte(out), &est)
	if est["days_remaining"] != "63.0 days" {
		t.Errorf("days_remaining = %v", est["days_remaining"])
	}
	if est["stock_status"] != "Overstocked" {
		t.Errorf("stock_status = %v", est["stock_status"])
	}

	// P200 has stock but no sales: infinite runway.
	out, _ = reg.Execute(ctx, "estimate_days_of_stock_remaining",
		map[string]any{"product_id": "P200"})
	json.Unmarshal([]byte(out), &est)
	if est["days_remaining"] != "Infinite (no recent sales)" {
		t.Errorf("days_remaining = %v", est["days_remaining"])
	}
}

func TestStockStatusBuckets(t *testing.T) {
	tests := []struct {
		days float64
		want string
	}{
		{3, "Critical - Reorder immediately"},
		{10, "Low - Reorder soon"},
		{20, "Adequate"},
		{45, "Healthy"},
		{90, "Overstocked"},
	}
	for _, tc := range tests {
		if got := stockStatus(tc.days); got != tc.want {
			t.Errorf("stockStatus(%v) = %q, want %q", tc.days, got, tc.want)
		}
	}
}

func TestTopSellersTool(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	reg := testRegistry(t, s)

	out, err := reg.Execute(context.Background(), "get_top_selling_products",
		map[string]any{"limit": float64(1)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var top []TopSeller
	json.Unmarshal([]byte(out), &top)
	if len(top) != 1 || top[0].ProductID != "P100" {
		t.Errorf("top sellers = %+v", top)
	}
}

func TestIntArgCoercion(t *testing.T) {
	args := map[string]any{"a": float64(7), "b": "12", "c": "junk"}
	if got := intArg(args, "a", 1); got != 7 {
		t.Errorf("float64 arg = %d", got)
	}
	if got := intArg(args, "b", 1); got != 12 {
		t.Errorf("string arg = %d", got)
	}
	if got := intArg(args, "c", 1); got != 1 {
		t.Errorf("junk arg = %d, want default", got)
	}
	if got := intArg(args, "missing", 5); got != 5 {
		t.Errorf("missing arg = %d, want default", got)
	}
}
