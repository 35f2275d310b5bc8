package checkout

import (
	"context"
	"errors"
)

// ErrTxConflict is returned by Store.RunTx when the underlying store detects
// that a concurrent transaction touched the same documents. It is the only
// retryable condition; PlaceOrder re-runs the whole transaction on it.
var ErrTxConflict = errors.New("transaction conflict")

// Tx is one transaction against the store. All reads must be issued before
// any write; the store applies the writes atomically at commit.
type Tx interface {
	// CounterValue returns the current order sequence value, 0 if the
	// counter record does not exist yet.
	CounterValue(ctx context.Context) (int64, error)

	// Product returns nil (no error) when the product does not exist.
	Product(ctx context.Context, id string) (*Product, error)

	// Customer returns nil (no error) when the customer does not exist.
	Customer(ctx context.Context, id string) (*Customer, error)

	SetCounterValue(ctx context.Context, v int64) error
	SetProductStock(ctx context.Context, id string, stock int) error
	InsertOrder(ctx context.Context, o *Order) error
	SetCustomerOrderCount(ctx context.Context, id string, n int) error
}

// Store runs fn inside one atomic transaction. If fn returns an error
// nothing is committed. RunTx returns ErrTxConflict on optimistic-concurrency
// conflicts and ErrStoreUnavailable (possibly wrapped) when the store cannot
// be reached.
type Store interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
