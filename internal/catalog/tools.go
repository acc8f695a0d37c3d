package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/merchantlabs/coo-agent/internal/tools"
)

// RegisterTools adds the structured-data tools to the registry, in the
// order the model sees them in the system prompt.
func RegisterTools(reg *tools.Registry, store *Store) error {
	for _, t := range []*tools.Tool{
		productInfoTool(store),
		listProductsTool(store),
		inventoryLevelTool(store),
		lowStockTool(store),
		salesDataTool(store),
		daysOfStockTool(store),
		topSellersTool(store),
	} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// stringArg extracts a string argument, empty when absent.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts an integer argument with a default. JSON numbers
// arrive as float64; models occasionally send digits as strings, so
// both are accepted.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

func productInfoTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "get_product_info",
		Description: "Get information about a specific product by its product_id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "string",
					"description": "The product ID to look up (e.g., 'P123')",
				},
			},
			"required": []string{"product_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := stringArg(args, "product_id")
			p, err := store.Product(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return tools.ErrorResult("Product with ID %s not found", id), nil
			}
			if err != nil {
				return "", err
			}
			return tools.JSONResult(p), nil
		},
	}
}

func listProductsTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "list_products",
		Description: "List products, optionally filtered by category (e.g., 'Apparel', 'Electronics').",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Optional category to filter by",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of products to return (default: 10)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			list, err := store.Products(ctx, stringArg(args, "category"), intArg(args, "limit", 10))
			if err != nil {
				return "", err
			}
			if list == nil {
				list = []Product{}
			}
			return tools.JSONResult(list), nil
		},
	}
}

func inventoryLevelTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "get_inventory_level",
		Description: "Get current inventory level for a specific product.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "string",
					"description": "The product ID to look up (e.g., 'P123')",
				},
			},
			"required": []string{"product_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := stringArg(args, "product_id")
			inv, err := store.Inventory(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return tools.ErrorResult("Inventory for product ID %s not found", id), nil
			}
			if err != nil {
				return "", err
			}
			return tools.JSONResult(inv), nil
		},
	}
}

func lowStockTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "list_low_stock_products",
		Description: "List all products with inventory levels below the specified threshold.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"threshold": map[string]any{
					"type":        "integer",
					"description": "Inventory quantity threshold (default: 10)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			items, err := store.LowStock(ctx, intArg(args, "threshold", 10))
			if err != nil {
				return "", err
			}
			if items == nil {
				items = []LowStockItem{}
			}
			return tools.JSONResult(items), nil
		},
	}
}

func salesDataTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "get_sales_data_for_product",
		Description: "Get sales data for a specific product over the specified number of days.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "string",
					"description": "The product ID to look up (e.g., 'P123')",
				},
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days to look back (default: 30)",
				},
			},
			"required": []string{"product_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := stringArg(args, "product_id")
			days := intArg(args, "days", 30)

			sum, err := store.Sales(ctx, id, days)
			if errors.Is(err, ErrNotFound) {
				return tools.ErrorResult("No orders found in the last %d days", days), nil
			}
			if err != nil {
				return "", err
			}
			if sum.TotalUnitsSold == 0 {
				return tools.JSONResult(map[string]any{
					"total_units_sold": 0,
					"total_revenue":    0.0,
					"avg_daily_units":  0.0,
					"message":          fmt.Sprintf("No sales for product %s in the last %d days", id, days),
				}), nil
			}
			return tools.JSONResult(sum), nil
		},
	}
}

func daysOfStockTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "estimate_days_of_stock_remaining",
		Description: "Estimate how many days of stock remain for a product based on recent sales velocity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "string",
					"description": "The product ID to analyze (e.g., 'P123')",
				},
				"days_to_analyze": map[string]any{
					"type":        "integer",
					"description": "Number of days to analyze for sales velocity (default: 30)",
				},
			},
			"required": []string{"product_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := stringArg(args, "product_id")
			days := intArg(args, "days_to_analyze", 30)

			inv, err := store.Inventory(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return tools.ErrorResult("Inventory for product ID %s not found", id), nil
			}
			if err != nil {
				return "", err
			}

			sum, err := store.Sales(ctx, id, days)
			if errors.Is(err, ErrNotFound) {
				return tools.ErrorResult("No orders found in the last %d days", days), nil
			}
			if err != nil {
				return "", err
			}

			if sum.TotalUnitsSold == 0 || sum.AvgDailyUnits <= 0 {
				return tools.JSONResult(map[string]any{
					"product_id":           id,
					"current_stock":        inv.Quantity,
					"avg_daily_units_sold": 0,
					"days_remaining":       "Infinite (no recent sales)",
					"stock_status":         "Overstocked",
				}), nil
			}

			daysRemaining := float64(inv.Quantity) / sum.AvgDailyUnits
			return tools.JSONResult(map[string]any{
				"product_id":           id,
				"current_stock":        inv.Quantity,
				"avg_daily_units_sold": sum.AvgDailyUnits,
				"days_remaining":       fmt.Sprintf("%.1f days", daysRemaining),
				"stock_status":         stockStatus(daysRemaining),
			}), nil
		},
	}
}

// stockStatus buckets a days-remaining projection into the reorder
// guidance shown to the model.
func stockStatus(daysRemaining float64) string {
	switch {
	case daysRemaining < 7:
		return "Critical - Reorder immediately"
	case daysRemaining < 14:
		return "Low - Reorder soon"
	case daysRemaining < 30:
		return "Adequate"
	case daysRemaining < 60:
		return "Healthy"
	default:
		return "Overstocked"
	}
}

func topSellersTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name:        "get_top_selling_products",
		Description: "Get the top selling products by quantity over the specified time period.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days to look back (default: 30)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of top products to return (default: 5)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			top, err := store.TopSellers(ctx, intArg(args, "days", 30), intArg(args, "limit", 5))
			if err != nil {
				return "", err
			}
			if top == nil {
				top = []TopSeller{}
			}
			return tools.JSONResult(top), nil
		},
	}
}
