package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFixtureCSVs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"products.csv": "product_id,name,category,price,cost,created_at\n" +
			"P100,Canvas Tote,Accessories,24.99,8.10,2024-11-02\n",
		"inventory.csv": "product_id,quantity,warehouse,last_updated\n" +
			"P100,42,Main,2025-06-10 09:00:00\n",
		"orders.csv": "order_id,customer_id,order_date,total_amount,status,payment_method\n" +
			"O1,C1001,2025-06-10 10:00:00,49.98,completed,credit_card\n",
		"order_items.csv": "order_id,product_id,quantity,price_per_unit,item_total\n" +
			"O1,P100,2,24.99,49.98\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	writeFixtureCSVs(t, dir)

	s := testCatalog(t)
	if err := s.ImportDir(context.Background(), dir); err != nil {
		t.Fatalf("ImportDir: %v", err)
	}

	p, err := s.Product(context.Background(), "P100")
	if err != nil {
		t.Fatalf("Product after import: %v", err)
	}
	if p.Name != "Canvas Tote" || p.Cost != 8.10 {
		t.Errorf("product = %+v", p)
	}

	inv, _ := s.Inventory(context.Background(), "P100")
	if inv == nil || inv.Quantity != 42 {
		t.Errorf("inventory = %+v", inv)
	}
}

func TestImportDir_MissingFile(t *testing.T) {
	dir := t.TempDir()
	// Only products.csv present.
	os.WriteFile(filepath.Join(dir, "products.csv"),
		[]byte("product_id,name,category,price,cost,created_at\n"), 0600)

	s := testCatalog(t)
	if err := s.ImportDir(context.Background(), dir); err == nil {
		t.Error("incomplete dataset should fail import")
	}
}

func TestImport_Reimport(t *testing.T) {
	dir := t.TempDir()
	writeFixtureCSVs(t, dir)
	s := testCatalog(t)
	ctx := context.Background()

	if err := s.ImportDir(ctx, dir); err != nil {
		t.Fatal(err)
	}
	if err := s.ImportDir(ctx, dir); err != nil {
		t.Fatalf("re-import should replace, not fail: %v", err)
	}

	// Order items are cleared on re-import, so no duplicates.
	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM order_items`).Scan(&n)
	if n != 1 {
		t.Errorf("order_items rows = %d, want 1", n)
	}
}

func TestImportProducts_BadValue(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "products.csv"),
		[]byte("product_id,name,category,price,cost,created_at\nP1,X,Y,notanumber,1.0,2024-01-01\n"), 0600)

	s := testCatalog(t)
	if _, err := s.ImportProducts(context.Background(), filepath.Join(dir, "products.csv")); err == nil {
		t.Error("malformed price should fail the import")
	}
}
