package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solenne/boutique/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, category, image, base_price
		FROM products ORDER BY id`

	listProductsByCategorySQL = `SELECT id, name, description, category, image, base_price
		FROM products WHERE category = $1 ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, category, image, base_price
		FROM products WHERE id = $1`

	getVariationsByProductSQL = `SELECT id, product_id, size, color, quantity, price
		FROM variations WHERE product_id = $1 ORDER BY size, color`

	getVariationByIDSQL = `SELECT id, product_id, size, color, quantity, price
		FROM variations WHERE id = $1`

	decrementStockSQL = `UPDATE variations SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2`

	restoreStockSQL = `UPDATE variations SET quantity = quantity + $2
		WHERE id = $1`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Inventory  = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Inventory
// backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products, optionally filtered by category. Variations are
// not loaded; use GetByID for the full product.
func (r *ProductRepository) List(ctx context.Context, category string) ([]product.Product, error) {
	q := dbFrom(ctx, r.pool)

	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = q.Query(ctx, listProductsSQL)
	} else {
		rows, err = q.Query(ctx, listProductsByCategorySQL, category)
	}
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product with its variations.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	q := dbFrom(ctx, r.pool)

	rows, err := q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	vrows, err := q.Query(ctx, getVariationsByProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variations for %q: %w", id, err)
	}
	p.Variations, err = pgx.CollectRows(vrows, scanVariation)
	if err != nil {
		return nil, fmt.Errorf("getting variations for %q: %w", id, err)
	}
	return &p, nil
}

// GetVariation returns a single variation by its identifier.
func (r *ProductRepository) GetVariation(ctx context.Context, variationID string) (*product.Variation, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getVariationByIDSQL, variationID)
	if err != nil {
		return nil, fmt.Errorf("getting variation %q: %w", variationID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrVariationNotFound
		}
		return nil, fmt.Errorf("getting variation %q: %w", variationID, err)
	}
	return &v, nil
}

// DecrementStock subtracts qty from the variation's stock as one conditional
// write. Zero rows affected means the stock did not cover the request and
// nothing was changed.
func (r *ProductRepository) DecrementStock(ctx context.Context, variationID string, qty int) error {
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, decrementStockSQL, variationID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", variationID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrInsufficientStock
	}
	return nil
}

// RestoreStock adds qty back to the variation's stock.
func (r *ProductRepository) RestoreStock(ctx context.Context, variationID string, qty int) error {
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, restoreStockSQL, variationID, qty)
	if err != nil {
		return fmt.Errorf("restoring stock for %q: %w", variationID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrVariationNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Image, &p.BasePrice)
	return p, err
}

func scanVariation(row pgx.CollectableRow) (product.Variation, error) {
	var v product.Variation
	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.Price)
	return v, err
}
