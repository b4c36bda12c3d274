package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups and stock mutation.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrVariationNotFound is returned when a requested variation does not exist.
	ErrVariationNotFound = errors.New("variation not found")
	// ErrInsufficientStock is returned by a conditional stock decrement when the
	// variation holds less stock than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product represents a catalog item available for purchase. Stock is tracked
// per variation, not on the product itself.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Image       string
	BasePrice   decimal.Decimal
	Variations  []Variation
}

// Variation is a purchasable SKU of a product: a specific size and color
// carrying its own stock quantity and price.
type Variation struct {
	ID        string
	ProductID string
	Size      string
	Color     string
	Quantity  int
	Price     decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, category string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetVariation(ctx context.Context, variationID string) (*Variation, error)
}

// Inventory defines stock mutation operations.
//
// DecrementStock must be atomic against concurrent decrements of the same
// variation: it subtracts qty only when the current quantity covers it and
// returns ErrInsufficientStock otherwise. A read followed by a separate write
// is not an acceptable implementation.
type Inventory interface {
	DecrementStock(ctx context.Context, variationID string, qty int) error
	RestoreStock(ctx context.Context, variationID string, qty int) error
}
