package fleet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildora/storefront/internal/checkout"
)

var (
	ErrVehicleExists   = errors.New("vehicle already exists")
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNoVehicleFree   = errors.New("no vehicle available")
	ErrNotDispatched   = errors.New("order has no dispatch")
)

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) Register(ctx context.Context, v Vehicle) error {
	if v.ID == "" || v.Name == "" {
		return errors.New("vehicle id and name are required")
	}
	if v.Kind != KindDrone && v.Kind != KindTruck {
		return errors.New("vehicle kind must be DRONE or TRUCK")
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO vehicles(id, kind, name, model, capacity_kg)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		v.ID, string(v.Kind), v.Name, v.Model, v.CapacityKg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrVehicleExists
	}
	return nil
}

func (r *Repo) List(ctx context.Context, kind Kind) ([]Vehicle, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, kind, name, model, capacity_kg, status, created_at
		FROM vehicles WHERE kind=$1 ORDER BY name`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var (
			v     Vehicle
			k, st string
		)
		if err := rows.Scan(&v.ID, &k, &v.Name, &v.Model, &v.CapacityKg, &st, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Kind, v.Status = Kind(k), VehicleStatus(st)
		out = append(out, v)
	}
	return out, rows.Err()
}

// AlreadyDispatched is the idempotent short-circuit for replayed events.
// Returns nil (no error) when the order has no assignment yet.
func (r *Repo) AlreadyDispatched(ctx context.Context, orderID string) (*Assignment, error) {
	var (
		a    Assignment
		kind string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT d.order_id, d.vehicle_id, v.kind, d.assigned_at
		FROM dispatches d JOIN vehicles v ON v.id = d.vehicle_id
		WHERE d.order_id=$1`, orderID).
		Scan(&a.OrderID, &a.VehicleID, &kind, &a.AssignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	return &a, nil
}

// Assign locks a free vehicle of the preferred kind (falling back to the
// other kind), marks it busy, records the dispatch, and moves the order to
// OUT_FOR_DELIVERY. One transaction; SKIP LOCKED keeps concurrent workers
// off the same vehicle row.
func (r *Repo) Assign(ctx context.Context, orderID string, prefer Kind) (*Assignment, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pick := func(kind Kind) (string, error) {
		var id string
		err := tx.QueryRow(ctx, `
			SELECT id FROM vehicles
			WHERE kind=$1 AND status='AVAILABLE'
			ORDER BY capacity_kg DESC
			LIMIT 1 FOR UPDATE SKIP LOCKED`, string(kind)).Scan(&id)
		return id, err
	}

	kind := prefer
	vehicleID, err := pick(kind)
	if errors.Is(err, pgx.ErrNoRows) {
		kind = OtherKind(prefer)
		vehicleID, err = pick(kind)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoVehicleFree
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE vehicles SET status='BUSY' WHERE id=$1`, vehicleID); err != nil {
		return nil, err
	}

	var a Assignment
	err = tx.QueryRow(ctx, `
		INSERT INTO dispatches(order_id, vehicle_id)
		VALUES ($1,$2) RETURNING order_id, vehicle_id, assigned_at`,
		orderID, vehicleID).Scan(&a.OrderID, &a.VehicleID, &a.AssignedAt)
	if err != nil {
		return nil, err
	}
	a.Kind = kind

	var cur string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur); err != nil {
		return nil, err
	}
	if !checkout.CanTransition(checkout.Status(cur), checkout.StatusOutForDelivery) {
		return nil, errors.New("order not in a dispatchable state: " + cur)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`,
		orderID, string(checkout.StatusOutForDelivery)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &a, nil
}

// Release frees the vehicle once the order leaves OUT_FOR_DELIVERY
// (delivered or cancelled mid-route).
func (r *Repo) Release(ctx context.Context, orderID string) (string, error) {
	var vehicleID string
	err := r.DB.QueryRow(ctx, `
		UPDATE vehicles SET status='AVAILABLE'
		WHERE id = (SELECT vehicle_id FROM dispatches WHERE order_id=$1)
		RETURNING id`, orderID).Scan(&vehicleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotDispatched
	}
	return vehicleID, err
}
