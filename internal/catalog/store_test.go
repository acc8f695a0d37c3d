package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// fixedNow pins the sales windows so fixtures don't age out.
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { s.Close() })
	return s
}

// seedCatalog loads a small fixture: two products, inventory for both,
// and ten days of orders for P100 only.
func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := s.db.Exec(query, args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	exec(`INSERT INTO products VALUES ('P100', 'Canvas Tote', 'Accessories', 24.99, 8.10, '2024-11-02')`)
	exec(`INSERT INTO products VALUES ('P200', 'Desk Lamp', 'Home Goods', 49.50, 19.00, '2024-09-15')`)

	exec(`INSERT INTO inventory VALUES ('P100', 42, 'Main', '2025-06-10 09:00:00')`)
	exec(`INSERT INTO inventory VALUES ('P200', 5, 'East', '2025-06-12 14:30:00')`)

	// One order per day for the last 10 days, 2 units of P100 each.
	for i := 1; i <= 10; i++ {
		date := fixedNow.AddDate(0, 0, -i).Format("2006-01-02 15:04:05")
		orderID := "O" + time.Date(2025, 6, i, 0, 0, 0, 0, time.UTC).Format("0102")
		exec(`INSERT INTO orders VALUES (?, 'C1001', ?, 49.98, 'completed', 'credit_card')`, orderID, date)
		exec(`INSERT INTO order_items VALUES (?, 'P100', 2, 24.99, 49.98)`, orderID)
	}
}

func TestProductLookup(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	ctx := context.Background()

	p, err := s.Product(ctx, "P100")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if p.Name != "Canvas Tote" || p.Price != 24.99 {
		t.Errorf("product = %+v", p)
	}

	_, err = s.Product(ctx, "P999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing product error = %v, want ErrNotFound", err)
	}
}

func TestProductsFilter(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	ctx := context.Background()

	all, err := s.Products(ctx, "", 10)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d products, want 2", len(all))
	}

	filtered, err := s.Products(ctx, "Accessories", 10)
	if err != nil {
		t.Fatalf("Products filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "P100" {
		t.Errorf("filtered = %+v", filtered)
	}

	limited, _ := s.Products(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d", len(limited))
	}
}

func TestInventoryLookup(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	ctx := context.Background()

	inv, err := s.Inventory(ctx, "P100")
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if inv.Quantity != 42 || inv.Warehouse != "Main" {
		t.Errorf("inventory = %+v", inv)
	}

	if _, err := s.Inventory(ctx, "P999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing inventory error = %v", err)
	}
}

func TestLowStock(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)

	items, err := s.LowStock(context.Background(), 10)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(items) != 1 || items[0].ProductID != "P200" {
		t.Errorf("low stock = %+v", items)
	}
	if items[0].Name != "Desk Lamp" {
		t.Errorf("join missing product details: %+v", items[0])
	}
}

func TestSales(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)
	ctx := context.Background()

	sum, err := s.Sales(ctx, "P100", 30)
	if err != nil {
		t.Fatalf("Sales: %v", err)
	}
	if sum.TotalUnitsSold != 20 {
		t.Errorf("TotalUnitsSold = %d, want 20", sum.TotalUnitsSold)
	}
	if sum.NumOrders != 10 {
		t.Errorf("NumOrders = %d, want 10", sum.NumOrders)
	}
	wantAvg := 20.0 / 30.0
	if diff := sum.AvgDailyUnits - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AvgDailyUnits = %v, want %v", sum.AvgDailyUnits, wantAvg)
	}

	// Product with no sales in a window that has orders: zero summary.
	zero, err := s.Sales(ctx, "P200", 30)
	if err != nil {
		t.Fatalf("Sales P200: %v", err)
	}
	if zero.TotalUnitsSold != 0 || zero.NumOrders != 0 {
		t.Errorf("zero summary = %+v", zero)
	}
}

func TestSales_NoOrdersInWindow(t *testing.T) {
	s := testCatalog(t)
	// No seed at all: the orders table is empty.
	_, err := s.Sales(context.Background(), "P100", 30)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("empty window error = %v, want ErrNotFound", err)
	}
}

func TestTopSellers(t *testing.T) {
	s := testCatalog(t)
	seedCatalog(t, s)

	// Add one smaller P200 sale so the ranking has two entries.
	date := fixedNow.AddDate(0, 0, -2).Format("2006-01-02 15:04:05")
	s.db.Exec(`INSERT INTO orders VALUES ('OX1', 'C2000', ?, 49.50, 'completed', 'paypal')`, date)
	s.db.Exec(`INSERT INTO order_items VALUES ('OX1', 'P200', 1, 49.50, 49.50)`)

	top, err := s.TopSellers(context.Background(), 30, 5)
	if err != nil {
		t.Fatalf("TopSellers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d sellers, want 2", len(top))
	}
	if top[0].ProductID != "P100" || top[0].UnitsSold != 20 {
		t.Errorf("top seller = %+v", top[0])
	}
	if top[1].ProductID != "P200" {
		t.Errorf("second seller = %+v", top[1])
	}
}
