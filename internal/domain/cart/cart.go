package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single cart line. Price is the unit price snapshotted when the
// item was added; checkout charges this price, not the live variation price.
type Item struct {
	ProductID   string          `json:"product_id"`
	VariationID string          `json:"variation_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Cart holds a user's pending line items. Items keep insertion order; Total
// always equals the sum of item price times quantity.
type Cart struct {
	UserID    string
	Items     []Item
	Total     decimal.Decimal
	UpdatedAt time.Time
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// ComputeTotal returns the sum of price times quantity over all items.
func ComputeTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Repository defines persistence operations for carts.
//
// SetItems replaces the cart's lines wholesale and persists the recomputed
// total; the cart row is created lazily when it does not exist yet. Clear
// empties the cart (items removed, total zeroed) without deleting it.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	SetItems(ctx context.Context, userID string, items []Item) error
	Clear(ctx context.Context, userID string) error
}
