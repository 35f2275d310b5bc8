package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildora/storefront/internal/checkout"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// OrdersRepo is the read/status side of orders. Placement goes through
// Store.RunTx only.
type OrdersRepo struct {
	DB *pgxpool.Pool
}

func (r *OrdersRepo) GetOrder(ctx context.Context, id string) (*checkout.Order, error) {
	var (
		o      checkout.Order
		status string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, customer_name, status, total_cents,
		       addr_label, addr_line1, addr_line2, addr_city, addr_state, addr_pincode,
		       created_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.CustomerName, &status, &o.TotalCents,
			&o.ShippingAddr.Label, &o.ShippingAddr.Line1, &o.ShippingAddr.Line2,
			&o.ShippingAddr.City, &o.ShippingAddr.State, &o.ShippingAddr.Pincode,
			&o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = checkout.Status(status)

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY pos`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it checkout.LineItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *OrdersRepo) GetOrderStatus(ctx context.Context, id string) (checkout.Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return checkout.Status(s), nil
}

// TransitionStatus moves an order to the target status if the status machine
// allows it from the current one. The read and write share a transaction so
// a concurrent transition cannot slip in between.
func (r *OrdersRepo) TransitionStatus(ctx context.Context, id string, to checkout.Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if !checkout.CanTransition(checkout.Status(cur), to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(to)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrdersRepo) ListByCustomer(ctx context.Context, customerID string, limit int) ([]checkout.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, customer_id, customer_name, status, total_cents, created_at
		FROM orders WHERE customer_id=$1
		ORDER BY created_at DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Order
	for rows.Next() {
		var (
			o      checkout.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &status, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = checkout.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
