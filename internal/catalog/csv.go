package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ImportDir loads the merchant CSV exports (products.csv, inventory.csv,
// orders.csv, order_items.csv) from dir. Missing files are an error:
// the tools assume a complete dataset.
func (s *Store) ImportDir(ctx context.Context, dir string) error {
	imports := []struct {
		file string
		load func(ctx context.Context, path string) (int, error)
	}{
		{"products.csv", s.ImportProducts},
		{"inventory.csv", s.ImportInventory},
		{"orders.csv", s.ImportOrders},
		{"order_items.csv", s.ImportOrderItems},
	}

	for _, imp := range imports {
		path := filepath.Join(dir, imp.file)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("dataset file %s not found", path)
		}
		if _, err := imp.load(ctx, path); err != nil {
			return fmt.Errorf("import %s: %w", imp.file, err)
		}
	}
	return nil
}

// ImportProducts loads products.csv, replacing existing rows by ID.
func (s *Store) ImportProducts(ctx context.Context, path string) (int, error) {
	return s.importCSV(ctx, path,
		[]string{"product_id", "name", "category", "price", "cost", "created_at"},
		`INSERT OR REPLACE INTO products
			(product_id, name, category, price, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			price, err := strconv.ParseFloat(rec["price"], 64)
			if err != nil {
				return nil, fmt.Errorf("bad price %q: %w", rec["price"], err)
			}
			cost, err := strconv.ParseFloat(rec["cost"], 64)
			if err != nil {
				return nil, fmt.Errorf("bad cost %q: %w", rec["cost"], err)
			}
			return []any{rec["product_id"], rec["name"], rec["category"],
				price, cost, rec["created_at"]}, nil
		})
}

// ImportInventory loads inventory.csv, replacing existing rows by
// product ID.
func (s *Store) ImportInventory(ctx context.Context, path string) (int, error) {
	return s.importCSV(ctx, path,
		[]string{"product_id", "quantity", "warehouse", "last_updated"},
		`INSERT OR REPLACE INTO inventory
			(product_id, quantity, warehouse, last_updated)
		 VALUES (?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			qty, err := strconv.Atoi(rec["quantity"])
			if err != nil {
				return nil, fmt.Errorf("bad quantity %q: %w", rec["quantity"], err)
			}
			return []any{rec["product_id"], qty, rec["warehouse"], rec["last_updated"]}, nil
		})
}

// ImportOrders loads orders.csv, replacing existing rows by order ID.
func (s *Store) ImportOrders(ctx context.Context, path string) (int, error) {
	return s.importCSV(ctx, path,
		[]string{"order_id", "customer_id", "order_date", "total_amount", "status", "payment_method"},
		`INSERT OR REPLACE INTO orders
			(order_id, customer_id, order_date, total_amount, status, payment_method)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			total, err := strconv.ParseFloat(rec["total_amount"], 64)
			if err != nil {
				return nil, fmt.Errorf("bad total_amount %q: %w", rec["total_amount"], err)
			}
			return []any{rec["order_id"], rec["customer_id"], rec["order_date"],
				total, rec["status"], rec["payment_method"]}, nil
		})
}

// ImportOrderItems loads order_items.csv. Existing items are cleared
// first since items have no natural key.
func (s *Store) ImportOrderItems(ctx context.Context, path string) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM order_items`); err != nil {
		return 0, fmt.Errorf("clear order items: %w", err)
	}
	return s.importCSV(ctx, path,
		[]string{"order_id", "product_id", "quantity", "price_per_unit", "item_total"},
		`INSERT INTO order_items
			(order_id, product_id, quantity, price_per_unit, item_total)
		 VALUES (?, ?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			qty, err := strconv.Atoi(rec["quantity"])
			if err != nil {
				return nil, fmt.Errorf("bad quantity %q: %w", rec["quantity"], err)
			}
			ppu, err := strconv.ParseFloat(rec["price_per_unit"], 64)
			if err != nil {
				return nil, fmt.Errorf("bad price_per_unit %q: %w", rec["price_per_unit"], err)
			}
			itemTotal, err := strconv.ParseFloat(rec["item_total"], 64)
			if err != nil {
				return nil, fmt.Errorf("bad item_total %q: %w", rec["item_total"], err)
			}
			return []any{rec["order_id"], rec["product_id"], qty, ppu, itemTotal}, nil
		})
}

// importCSV streams one header-addressed CSV file into the database in
// a single transaction. Returns the number of rows inserted.
func (s *Store) importCSV(ctx context.Context, path string, required []string,
	insert string, bind func(rec map[string]string) ([]any, error)) (int, error) {

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return 0, fmt.Errorf("missing column %q in %s", name, path)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}

		rec := make(map[string]string, len(required))
		for _, name := range required {
			i := col[name]
			if i >= len(row) {
				return 0, fmt.Errorf("line %d: short row", line)
			}
			rec[name] = row[i]
		}

		args, err := bind(rec)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("line %d: insert: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return count, nil
}
