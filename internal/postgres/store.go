package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildora/storefront/internal/checkout"
)

// Store implements checkout.Store over Postgres. Transactions run at
// SERIALIZABLE so concurrent placements against the same stock rows conflict
// instead of both committing; serialization failures surface as
// checkout.ErrTxConflict and the service retries the whole transaction.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", checkout.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapTxErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapTxErr(err)
	}
	return nil
}

// SQLSTATE 40001 (serialization_failure) and 40P01 (deadlock_detected) are
// the retryable conflicts; anything else is surfaced as-is.
func mapTxErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", checkout.ErrTxConflict, pgErr.Code)
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", checkout.ErrStoreUnavailable, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CounterValue(ctx context.Context) (int64, error) {
	var v int64
	err := t.tx.QueryRow(ctx, `SELECT current FROM order_sequence WHERE id = TRUE`).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (t *pgTx) Product(ctx context.Context, id string) (*checkout.Product, error) {
	var p checkout.Product
	err := t.tx.QueryRow(ctx, `SELECT id, name, unit, stock, price_cents, created_at, updated_at
	                           FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Unit, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) Customer(ctx context.Context, id string) (*checkout.Customer, error) {
	var c checkout.Customer
	err := t.tx.QueryRow(ctx, `SELECT id, name, phone, order_count, created_at
	                           FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.OrderCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) SetCounterValue(ctx context.Context, v int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_sequence(id, current) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET current = EXCLUDED.current`, v)
	return err
}

func (t *pgTx) SetProductStock(ctx context.Context, id string, stock int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("stock update touched %d rows for product %s", ct.RowsAffected(), id)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *checkout.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, customer_name, status, total_cents,
		                   addr_label, addr_line1, addr_line2, addr_city, addr_state, addr_pincode,
		                   created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.CustomerID, o.CustomerName, string(o.Status), o.TotalCents,
		o.ShippingAddr.Label, o.ShippingAddr.Line1, o.ShippingAddr.Line2,
		o.ShippingAddr.City, o.ShippingAddr.State, o.ShippingAddr.Pincode,
		o.CreatedAt)
	if err != nil {
		return err
	}
	for i, it := range o.Items {
		_, err = t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, qty, price_cents, pos)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.Name, it.Qty, it.PriceCents, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) SetCustomerOrderCount(ctx context.Context, id string, n int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE customers SET order_count=$2 WHERE id=$1`, id, n)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order_count update touched %d rows for customer %s", ct.RowsAffected(), id)
	}
	return nil
}
