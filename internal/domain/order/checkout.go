package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/solenne/boutique/internal/domain/cart"
	"github.com/solenne/boutique/internal/domain/product"
)

// ErrEmptyCart is returned when checkout is attempted on a missing or empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// maxNumberRetries bounds how many times checkout regenerates the order
// number after a uniqueness collision before giving up.
const maxNumberRetries = 3

// ReferenceNotFoundError indicates a cart line references a product or
// variation that no longer exists.
type ReferenceNotFoundError struct {
	ProductID   string
	VariationID string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("product %s variation %s not found", e.ProductID, e.VariationID)
}

// InsufficientStockError indicates a variation holds less stock than the cart
// requests.
type InsufficientStockError struct {
	ProductName string
	Size        string
	Color       string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (size %s, color %s): requested %d, available %d",
		e.ProductName, e.Size, e.Color, e.Requested, e.Available)
}

// Transactor runs a function within a single storage transaction. Repository
// calls made with the context passed to fn join that transaction; any error
// from fn rolls the whole transaction back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlaceOrderRequest holds the input for checkout.
type PlaceOrderRequest struct {
	UserID          string
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
}

// CheckoutService converts a cart into an order: it validates every line
// against the catalog, decrements inventory, persists the order, and clears
// the cart — all inside one transaction, so a failure at any step leaves no
// partial state behind.
type CheckoutService struct {
	tx        Transactor
	carts     cart.Repository
	products  product.Repository
	inventory product.Inventory
	orders    Repository
}

// NewCheckoutService creates a CheckoutService with the required stores.
func NewCheckoutService(
	tx Transactor,
	carts cart.Repository,
	products product.Repository,
	inventory product.Inventory,
	orders Repository,
) *CheckoutService {
	return &CheckoutService{
		tx:        tx,
		carts:     carts,
		products:  products,
		inventory: inventory,
		orders:    orders,
	}
}

// PlaceOrder executes checkout for the user's cart.
//
// Items are processed in cart insertion order and the first missing reference
// or insufficient line aborts the entire checkout — no partial fulfillment.
// The stock check and decrement are a single conditional write at the storage
// layer, so two concurrent checkouts of the same variation cannot both pass
// and drive stock negative. An order number collision is retried with a fresh
// number a bounded number of times.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var placed *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.Get(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("get cart: %w", err)
		}
		if c.IsEmpty() {
			return ErrEmptyCart
		}

		items := make([]Item, 0, len(c.Items))
		for _, line := range c.Items {
			p, err := s.products.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &ReferenceNotFoundError{ProductID: line.ProductID, VariationID: line.VariationID}
				}
				return fmt.Errorf("get product %q: %w", line.ProductID, err)
			}

			v, err := s.products.GetVariation(ctx, line.VariationID)
			if err != nil {
				if errors.Is(err, product.ErrVariationNotFound) {
					return &ReferenceNotFoundError{ProductID: line.ProductID, VariationID: line.VariationID}
				}
				return fmt.Errorf("get variation %q: %w", line.VariationID, err)
			}

			if err := s.inventory.DecrementStock(ctx, line.VariationID, line.Quantity); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return &InsufficientStockError{
						ProductName: p.Name,
						Size:        v.Size,
						Color:       v.Color,
						Requested:   line.Quantity,
						Available:   v.Quantity,
					}
				}
				return fmt.Errorf("decrement stock for %q: %w", line.VariationID, err)
			}

			items = append(items, Item{
				ProductID:   line.ProductID,
				VariationID: line.VariationID,
				Name:        p.Name,
				Image:       p.Image,
				Size:        v.Size,
				Color:       v.Color,
				Price:       line.Price,
				Quantity:    line.Quantity,
			})
		}

		o := &Order{
			UserID:          req.UserID,
			Items:           items,
			Total:           cart.ComputeTotal(c.Items),
			Status:          StatusPending,
			PaymentStatus:   PaymentPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
		}
		if err := s.createWithRetry(ctx, o); err != nil {
			return err
		}

		if err := s.carts.Clear(ctx, req.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// createWithRetry inserts the order, regenerating the order number on
// uniqueness collisions up to maxNumberRetries times.
func (s *CheckoutService) createWithRetry(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		o.Number = GenerateNumber()
		err := s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return fmt.Errorf("create order: %w", err)
		}
	}
	return fmt.Errorf("create order after %d attempts: %w", maxNumberRetries, ErrDuplicateOrderNumber)
}

// Cancel cancels a pending or processing order and restores the decremented
// stock, in one transaction.
func (s *CheckoutService) Cancel(ctx context.Context, userID, number string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByNumber(ctx, number)
		if err != nil {
			return fmt.Errorf("get order %q: %w", number, err)
		}
		if o.UserID != userID {
			return ErrNotFound
		}
		if !o.Status.CanTransition(StatusCancelled) {
			return ErrInvalidTransition
		}

		if err := s.orders.UpdateStatus(ctx, number, StatusCancelled); err != nil {
			return fmt.Errorf("cancel order %q: %w", number, err)
		}
		for _, it := range o.Items {
			if err := s.inventory.RestoreStock(ctx, it.VariationID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock for %q: %w", it.VariationID, err)
			}
		}
		return nil
	})
}
