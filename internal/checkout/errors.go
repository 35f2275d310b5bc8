package checkout

import (
	"errors"
	"fmt"
)

// Terminal validation failures. Never retried; surfaced verbatim so the
// caller can build a user-facing message.

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d requested=%d",
		e.ProductID, e.Available, e.Requested)
}

type CustomerNotFoundError struct {
	CustomerID string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer not found: %s", e.CustomerID)
}

var (
	// ErrContention: the conflict-retry budget is exhausted. Safe to retry
	// the whole checkout.
	ErrContention = errors.New("checkout contention: retries exhausted")

	// ErrStoreUnavailable: the transactional store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrEmptyOrder    = errors.New("order has no items")
	ErrInvalidQty    = errors.New("item quantity must be positive")
	ErrNoCustomer    = errors.New("missing customer id")
	ErrNegativeTotal = errors.New("order total must not be negative")
)
