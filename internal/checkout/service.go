package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 25 * time.Millisecond
)

// Service runs the order placement transaction: allocate the next order id
// from the sequence counter, validate and decrement stock for every line
// item, write the order record, bump the customer's order count. All of it
// commits together or not at all.
type Service struct {
	Store       Store
	MaxAttempts int           // conflict retry budget, DefaultMaxAttempts if 0
	BaseBackoff time.Duration // first retry delay, DefaultBaseBackoff if 0

	now func() time.Time // test hook
}

func NewService(store Store) *Service {
	return &Service{
		Store:       store,
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder returns the allocated order id on success. Validation failures
// (ProductNotFoundError, InsufficientStockError, CustomerNotFoundError) are
// terminal and leave the store untouched. Write conflicts are retried
// transparently; once the budget is exhausted the caller gets ErrContention.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error) {
	items, err := normalizeItems(req)
	if err != nil {
		return "", err
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := s.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	now := s.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var orderID string
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(base, attempt-1)); err != nil {
				return "", err
			}
		}

		err := s.Store.RunTx(ctx, func(ctx context.Context, tx Tx) error {
			id, err := placeOnce(ctx, tx, req, items, now())
			if err != nil {
				return err
			}
			orderID = id
			return nil
		})
		if err == nil {
			return orderID, nil
		}
		if errors.Is(err, ErrTxConflict) {
			continue
		}
		return "", err
	}
	return "", ErrContention
}

// placeOnce is one Start -> Validate -> Commit pass. Every read happens
// before the first write; the store requires it and the two-phase check
// depends on it.
func placeOnce(ctx context.Context, tx Tx, req PlaceOrderRequest, items []LineItem, at time.Time) (string, error) {
	// Start: read the counter, every product, and the customer.
	seq, err := tx.CounterValue(ctx)
	if err != nil {
		return "", fmt.Errorf("read counter: %w", err)
	}

	products := make([]*Product, len(items))
	for i, it := range items {
		p, err := tx.Product(ctx, it.ProductID)
		if err != nil {
			return "", fmt.Errorf("read product %s: %w", it.ProductID, err)
		}
		products[i] = p
	}

	cust, err := tx.Customer(ctx, req.CustomerID)
	if err != nil {
		return "", fmt.Errorf("read customer %s: %w", req.CustomerID, err)
	}

	// Validate: all items must pass before any stock is written, so a
	// failing item never leaves a sibling's stock decremented.
	for i, it := range items {
		if products[i] == nil {
			return "", &ProductNotFoundError{ProductID: it.ProductID}
		}
		if products[i].Stock < it.Qty {
			return "", &InsufficientStockError{
				ProductID: it.ProductID,
				Available: products[i].Stock,
				Requested: it.Qty,
			}
		}
	}
	if cust == nil {
		return "", &CustomerNotFoundError{CustomerID: req.CustomerID}
	}

	// Commit: counter, stock decrements, order record, customer counter.
	orderID := strconv.FormatInt(seq+1, 10)

	if err := tx.SetCounterValue(ctx, seq+1); err != nil {
		return "", fmt.Errorf("write counter: %w", err)
	}
	for i, it := range items {
		if err := tx.SetProductStock(ctx, it.ProductID, products[i].Stock-it.Qty); err != nil {
			return "", fmt.Errorf("write stock %s: %w", it.ProductID, err)
		}
	}
	order := &Order{
		ID:           orderID,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Status:       StatusProcessing,
		Items:        items,
		ShippingAddr: req.ShippingAddr,
		TotalCents:   req.TotalCents,
		CreatedAt:    at,
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return "", fmt.Errorf("write order: %w", err)
	}
	if err := tx.SetCustomerOrderCount(ctx, cust.ID, cust.OrderCount+1); err != nil {
		return "", fmt.Errorf("write customer counter: %w", err)
	}
	return orderID, nil
}

// normalizeItems validates the request and merges duplicate product ids by
// summing quantities, keeping first-seen order.
func normalizeItems(req PlaceOrderRequest) ([]LineItem, error) {
	if req.CustomerID == "" {
		return nil, ErrNoCustomer
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if req.TotalCents < 0 {
		return nil, ErrNegativeTotal
	}

	idx := make(map[string]int, len(req.Items))
	out := make([]LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQty, it.ProductID)
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func backoff(base time.Duration, attempt int) time.Duration {
	exp := base * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(exp/2) + 1))
	return exp + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
