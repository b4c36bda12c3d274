package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solenne/boutique/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(order_number, user_id, items, total, status, payment_status, payment_method, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectOrderSQL = `SELECT order_number, user_id, items, total, status, payment_status,
		payment_method, shipping_address, billing_address, created_at FROM orders`

	listOrdersByUserSQL = selectOrderSQL + ` WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderByNumberSQL = selectOrderSQL + ` WHERE order_number = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE order_number = $1 AND status = $3`

	updatePaymentStatusSQL = `UPDATE orders SET payment_status = $2 WHERE order_number = $1 AND payment_status = $3`
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Item
// snapshots and addresses are serialized to JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A primary key collision on the order number is
// reported as order.ErrDuplicateOrderNumber so the caller can regenerate.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shipJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}

	_, err = dbFrom(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.Number, o.UserID, itemsJSON, o.Total, o.Status, o.PaymentStatus,
		o.PaymentMethod, shipJSON, billJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return order.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// GetByNumber returns a single order by its number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getOrderByNumberSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return &o, nil
}

// UpdateStatus transitions the order's fulfillment status. The UPDATE is
// conditional on the status the transition was validated against, so a
// concurrent transition committed in between matches zero rows instead of
// silently overwriting; that surfaces as ErrInvalidTransition and rolls the
// caller's transaction back.
func (r *OrderRepository) UpdateStatus(ctx context.Context, number string, status order.Status) error {
	o, err := r.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if !o.Status.CanTransition(status) {
		return order.ErrInvalidTransition
	}

	tag, err := dbFrom(ctx, r.pool).Exec(ctx, updateOrderStatusSQL, number, status, o.Status)
	if err != nil {
		return fmt.Errorf("updating status of %q: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInvalidTransition
	}
	return nil
}

// UpdatePaymentStatus transitions the order's payment status, conditional on
// the current payment status like UpdateStatus.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, number string, status order.PaymentStatus) error {
	o, err := r.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if !o.PaymentStatus.CanTransition(status) {
		return order.ErrInvalidTransition
	}

	tag, err := dbFrom(ctx, r.pool).Exec(ctx, updatePaymentStatusSQL, number, status, o.PaymentStatus)
	if err != nil {
		return fmt.Errorf("updating payment status of %q: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInvalidTransition
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                  order.Order
		itemsJSON          []byte
		shipJSON, billJSON []byte
	)
	err := row.Scan(&o.Number, &o.UserID, &itemsJSON, &o.Total, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &shipJSON, &billJSON, &o.CreatedAt)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(shipJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(billJSON, &o.BillingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	return o, nil
}
