package postgres

import "github.com/vladislavdragonenkov/shopstore/internal/domain"

var ordersTable = table[domain.Order]{
	kind:    domain.KindOrder,
	name:    "orders",
	columns: []string{"customer_id", "status", "currency", "amount_minor", "created_at", "updated_at"},
	values: func(o domain.Order) []any {
		return []any{o.CustomerID, o.Status, o.Currency, o.AmountMinor, o.CreatedAt, o.UpdatedAt}
	},
	scan: func(row rowScanner) (domain.Order, error) {
		var o domain.Order
		err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Currency, &o.AmountMinor, &o.CreatedAt, &o.UpdatedAt)
		return o, err
	},
}

var productsTable = table[domain.Product]{
	kind:    domain.KindProduct,
	name:    "products",
	columns: []string{"sku", "name", "description", "currency", "price_minor", "created_at", "updated_at"},
	values: func(p domain.Product) []any {
		return []any{p.SKU, p.Name, p.Description, p.Currency, p.PriceMinor, p.CreatedAt, p.UpdatedAt}
	},
	scan: func(row rowScanner) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Currency, &p.PriceMinor, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	},
}
