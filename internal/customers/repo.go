package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildora/storefront/internal/checkout"
)

var (
	ErrNotFound      = errors.New("customer not found")
	ErrAlreadyExists = errors.New("customer already exists")
)

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) Create(ctx context.Context, c checkout.Customer) error {
	if c.ID == "" || c.Name == "" {
		return errors.New("customer id and name are required")
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO customers(id, name, phone)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING`, c.ID, c.Name, c.Phone)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*checkout.Customer, error) {
	var c checkout.Customer
	err := r.DB.QueryRow(ctx, `SELECT id, name, phone, order_count, created_at
	                           FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.OrderCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) List(ctx context.Context) ([]checkout.Customer, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, phone, order_count, created_at
	                              FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Customer
	for rows.Next() {
		var c checkout.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.OrderCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
