// Package catalog provides the merchant dataset: products, inventory,
// orders, and the structured-data tools the agent exposes over them.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates a lookup key with no matching row.
var ErrNotFound = errors.New("not found")

// Product is one row of the product table.
type Product struct {
	ID        string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	CreatedAt string  `json:"created_at"`
}

// InventoryLevel is the stock position for one product.
type InventoryLevel struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Warehouse   string `json:"warehouse"`
	LastUpdated string `json:"last_updated"`
}

// LowStockItem joins a product with its below-threshold inventory.
type LowStockItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Warehouse string  `json:"warehouse"`
}

// SalesSummary aggregates sales for one product over a window.
type SalesSummary struct {
	ProductID      string  `json:"product_id"`
	PeriodDays     int     `json:"period_days"`
	TotalUnitsSold int     `json:"total_units_sold"`
	TotalRevenue   float64 `json:"total_revenue"`
	AvgDailyUnits  float64 `json:"avg_daily_units"`
	NumOrders      int     `json:"num_orders"`
}

// TopSeller is one entry in the top-selling products ranking.
type TopSeller struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	UnitsSold int     `json:"quantity"`
	Revenue   float64 `json:"item_total"`
}

// Store holds the imported merchant dataset in SQLite.
type Store struct {
	db *sql.DB

	// now is swapped in tests to pin the sales windows.
	now func() time.Time
}

// NewStore opens (and migrates) the dataset database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			category   TEXT NOT NULL,
			price      REAL NOT NULL,
			cost       REAL NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS inventory (
			product_id   TEXT PRIMARY KEY,
			quantity     INTEGER NOT NULL,
			warehouse    TEXT NOT NULL,
			last_updated TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS orders (
			order_id       TEXT PRIMARY KEY,
			customer_id    TEXT NOT NULL,
			order_date     TEXT NOT NULL,
			total_amount   REAL NOT NULL,
			status         TEXT NOT NULL,
			payment_method TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS order_items (
			order_id       TEXT NOT NULL,
			product_id     TEXT NOT NULL,
			quantity       INTEGER NOT NULL,
			price_per_unit REAL NOT NULL,
			item_total     REAL NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
		CREATE INDEX IF NOT EXISTS idx_inventory_quantity ON inventory(quantity);
		CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date);
		CREATE INDEX IF NOT EXISTS idx_items_product ON order_items(product_id);
		CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
	`)
	return err
}

// Product looks up one product by ID. Returns ErrNotFound on a miss.
func (s *Store) Product(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx,
		`SELECT product_id, name, category, price, cost, created_at
		 FROM products WHERE product_id = ?`, productID).
		Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Cost, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", productID, err)
	}
	return &p, nil
}

// Products lists products, optionally filtered by category, up to limit.
func (s *Store) Products(ctx context.Context, category string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT product_id, name, category, price, cost, created_at
	          FROM products`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY product_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Cost, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Inventory returns the stock position for one product. Returns
// ErrNotFound on a miss.
func (s *Store) Inventory(ctx context.Context, productID string) (*InventoryLevel, error) {
	var inv InventoryLevel
	err := s.db.QueryRowContext(ctx,
		`SELECT product_id, quantity, warehouse, last_updated
		 FROM inventory WHERE product_id = ?`, productID).
		Scan(&inv.ProductID, &inv.Quantity, &inv.Warehouse, &inv.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory %s: %w", productID, err)
	}
	return &inv, nil
}

// LowStock lists products whose inventory quantity is below threshold,
// joined with product details.
func (s *Store) LowStock(ctx context.Context, threshold int) ([]LowStockItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.product_id, p.name, p.category, p.price, i.quantity, i.warehouse
		 FROM inventory i
		 JOIN products p ON p.product_id = i.product_id
		 WHERE i.quantity < ?
		 ORDER BY i.quantity ASC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	defer rows.Close()

	var result []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Category,
			&item.Price, &item.Quantity, &item.Warehouse); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// windowStart formats the cutoff date for an N-day lookback. Order
// dates are stored as "YYYY-MM-DD HH:MM:SS" text, so a date-prefix
// string comparison does the right thing.
func (s *Store) windowStart(days int) string {
	return s.now().AddDate(0, 0, -days).Format("2006-01-02")
}

// Sales aggregates sales for one product over the last `days` days.
// Returns ErrNotFound when there are no orders at all in the window
// (distinct from the product simply having no sales, which yields a
// zero-valued summary).
func (s *Store) Sales(ctx context.Context, productID string, days int) (*SalesSummary, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := s.windowStart(days)

	var orderCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE order_date >= ?`, cutoff).Scan(&orderCount)
	if err != nil {
		return nil, fmt.Errorf("count recent orders: %w", err)
	}
	if orderCount == 0 {
		return nil, ErrNotFound
	}

	sum := SalesSummary{ProductID: productID, PeriodDays: days}
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.item_total), 0), COUNT(oi.rowid)
		 FROM order_items oi
		 JOIN orders o ON o.order_id = oi.order_id
		 WHERE oi.product_id = ? AND o.order_date >= ?`,
		productID, cutoff).
		Scan(&sum.TotalUnitsSold, &sum.TotalRevenue, &sum.NumOrders)
	if err != nil {
		return nil, fmt.Errorf("query sales for %s: %w", productID, err)
	}

	sum.AvgDailyUnits = float64(sum.TotalUnitsSold) / float64(days)
	return &sum, nil
}

// TopSellers ranks products by units sold over the last `days` days.
func (s *Store) TopSellers(ctx context.Context, days, limit int) ([]TopSeller, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT oi.product_id, p.name, p.category, p.price,
		        SUM(oi.quantity) AS units, SUM(oi.item_total) AS revenue
		 FROM order_items oi
		 JOIN orders o ON o.order_id = oi.order_id
		 JOIN products p ON p.product_id = oi.product_id
		 WHERE o.order_date >= ?
		 GROUP BY oi.product_id
		 ORDER BY units DESC
		 LIMIT ?`,
		s.windowStart(days), limit)
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer rows.Close()

	var result []TopSeller
	for rows.Next() {
		var ts TopSeller
		if err := rows.Scan(&ts.ProductID, &ts.Name, &ts.Category, &ts.Price,
			&ts.UnitsSold, &ts.Revenue); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}
