package cart

import (
	"context"
	"fmt"

	"github.com/solenne/boutique/internal/domain/product"
)

// Sentinel errors for cart mutation.
var (
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
	ErrItemNotInCart   = fmt.Errorf("item not in cart")
)

// Service implements cart mutation on top of the cart repository and the
// product catalog. Prices are snapshotted from the variation at add time.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's cart. A user without a cart gets an empty one; the
// row is only created once an item is added.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if c == nil {
		c = &Cart{UserID: userID}
	}
	return c, nil
}

// AddItem appends a line for the given variation, snapshotting its current
// price. Adding a variation already in the cart accumulates quantity on the
// existing line instead of creating a second one.
func (s *Service) AddItem(ctx context.Context, userID, productID, variationID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	v, err := s.products.GetVariation(ctx, variationID)
	if err != nil {
		return nil, fmt.Errorf("get variation %q: %w", variationID, err)
	}
	if v.ProductID != productID {
		return nil, product.ErrVariationNotFound
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range c.Items {
		if c.Items[i].VariationID == variationID {
			c.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		c.Items = append(c.Items, Item{
			ProductID:   productID,
			VariationID: variationID,
			Quantity:    quantity,
			Price:       v.Price,
		})
	}

	return s.save(ctx, c)
}

// UpdateItem sets the quantity of an existing line. Quantity 0 removes the
// line; the snapshotted price is kept.
func (s *Service) UpdateItem(ctx context.Context, userID, variationID string, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, variationID)
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range c.Items {
		if c.Items[i].VariationID == variationID {
			c.Items[i].Quantity = quantity
			return s.save(ctx, c)
		}
	}
	return nil, ErrItemNotInCart
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, variationID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	removed := false
	for _, it := range c.Items {
		if it.VariationID == variationID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return nil, ErrItemNotInCart
	}
	c.Items = kept

	return s.save(ctx, c)
}

func (s *Service) save(ctx context.Context, c *Cart) (*Cart, error) {
	if err := s.carts.SetItems(ctx, c.UserID, c.Items); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	c.Total = ComputeTotal(c.Items)
	return c, nil
}
