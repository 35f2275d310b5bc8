package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildora/storefront/internal/checkout"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrAlreadyExists = errors.New("product already exists")
	ErrBadQuantity   = errors.New("restock quantity must be positive")
)

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) Create(ctx context.Context, p checkout.Product) error {
	if p.ID == "" || p.Name == "" {
		return errors.New("product id and name are required")
	}
	if p.Stock < 0 || p.PriceCents < 0 {
		return errors.New("stock and price must not be negative")
	}
	if p.Unit == "" {
		p.Unit = "piece"
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, unit, stock, price_cents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Unit, p.Stock, p.PriceCents)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*checkout.Product, error) {
	var p checkout.Product
	err := r.DB.QueryRow(ctx, `SELECT id, name, unit, stock, price_cents, created_at, updated_at
	                           FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Unit, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]checkout.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, unit, stock, price_cents, created_at, updated_at
	                              FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Product
	for rows.Next() {
		var p checkout.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Restock is the only stock increment path; checkout is the only decrement.
// Returns the new stock level.
func (r *Repo) Restock(ctx context.Context, id string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrBadQuantity
	}
	var stock int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1 RETURNING stock`, id, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("restock %s: %w", id, err)
	}
	return stock, nil
}
