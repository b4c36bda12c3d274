package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solenne/boutique/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, total, updated_at FROM carts WHERE user_id = $1`

	getCartItemsSQL = `SELECT product_id, variation_id, quantity, price
		FROM cart_items WHERE user_id = $1 ORDER BY position`

	upsertCartSQL = `INSERT INTO carts (user_id, total, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET total = EXCLUDED.total, updated_at = now()`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1`

	insertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, variation_id, quantity, price, position)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line items
// live in their own table keyed by (user, variation); insertion order is kept
// in an explicit position column.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart with its items in insertion order, or nil when
// the user has no cart yet.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	q := dbFrom(ctx, r.pool)

	var c cart.Cart
	err := q.QueryRow(ctx, getCartSQL, userID).Scan(&c.UserID, &c.Total, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}

	rows, err := q.Query(ctx, getCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart items for %q: %w", userID, err)
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.VariationID, &it.Quantity, &it.Price)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting cart items for %q: %w", userID, err)
	}
	return &c, nil
}

// SetItems replaces the cart's lines wholesale and stores the recomputed
// total, creating the cart row when needed.
func (r *CartRepository) SetItems(ctx context.Context, userID string, items []cart.Item) error {
	q := dbFrom(ctx, r.pool)

	if _, err := q.Exec(ctx, upsertCartSQL, userID, cart.ComputeTotal(items)); err != nil {
		return fmt.Errorf("upserting cart for %q: %w", userID, err)
	}
	if _, err := q.Exec(ctx, deleteCartItemsSQL, userID); err != nil {
		return fmt.Errorf("clearing cart items for %q: %w", userID, err)
	}
	for i, it := range items {
		_, err := q.Exec(ctx, insertCartItemSQL, userID, it.ProductID, it.VariationID, it.Quantity, it.Price, i)
		if err != nil {
			return fmt.Errorf("inserting cart item %q for %q: %w", it.VariationID, userID, err)
		}
	}
	return nil
}

// Clear empties the cart: items removed, total zeroed, row kept.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return r.SetItems(ctx, userID, nil)
}
