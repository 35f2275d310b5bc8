package checkout

import (
	"context"
	"sync"
)

// memStore is an in-memory Store with per-record versioning. Commits validate
// every version read inside the transaction and fail with ErrTxConflict when
// a concurrent commit got there first, which is exactly the contract the
// Postgres store exposes via serializable isolation.
type memStore struct {
	mu        sync.Mutex
	counter   int64
	counterV  int64
	products  map[string]*Product
	productV  map[string]int64
	customers map[string]*Customer
	customerV map[string]int64
	orders    map[string]*Order

	forcedConflicts int  // fail the next N commits regardless of versions
	unavailable     bool // simulate an unreachable store
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[string]*Product),
		productV:  make(map[string]int64),
		customers: make(map[string]*Customer),
		customerV: make(map[string]int64),
		orders:    make(map[string]*Order),
	}
}

type memTx struct {
	s *memStore

	readCounter   bool
	readCounterV  int64
	readProductV  map[string]int64
	readCustomerV map[string]int64

	// buffered writes, applied at commit
	setCounter *int64
	setStock   map[string]int
	setCount   map[string]int
	newOrders  []*Order
}

func (s *memStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s.unavailable {
		return ErrStoreUnavailable
	}
	tx := &memTx{
		s:             s,
		readProductV:  make(map[string]int64),
		readCustomerV: make(map[string]int64),
		setStock:      make(map[string]int),
		setCount:      make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *memStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forcedConflicts > 0 {
		s.forcedConflicts--
		return ErrTxConflict
	}
	if tx.readCounter && s.counterV != tx.readCounterV {
		return ErrTxConflict
	}
	for id, v := range tx.readProductV {
		if s.productV[id] != v {
			return ErrTxConflict
		}
	}
	for id, v := range tx.readCustomerV {
		if s.customerV[id] != v {
			return ErrTxConflict
		}
	}

	if tx.setCounter != nil {
		s.counter = *tx.setCounter
		s.counterV++
	}
	for id, stock := range tx.setStock {
		p := *s.products[id]
		p.Stock = stock
		s.products[id] = &p
		s.productV[id]++
	}
	for id, n := range tx.setCount {
		c := *s.customers[id]
		c.OrderCount = n
		s.customers[id] = &c
		s.customerV[id]++
	}
	for _, o := range tx.newOrders {
		s.orders[o.ID] = o
	}
	return nil
}

func (t *memTx) CounterValue(ctx context.Context) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.readCounter = true
	t.readCounterV = t.s.counterV
	return t.s.counter, nil
}

func (t *memTx) Product(ctx context.Context, id string) (*Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.readProductV[id] = t.s.productV[id]
	p, ok := t.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) Customer(ctx context.Context, id string) (*Customer, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.readCustomerV[id] = t.s.customerV[id]
	c, ok := t.s.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (t *memTx) SetCounterValue(ctx context.Context, v int64) error {
	t.setCounter = &v
	return nil
}

func (t *memTx) SetProductStock(ctx context.Context, id string, stock int) error {
	t.setStock[id] = stock
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	cp := *o
	t.newOrders = append(t.newOrders, &cp)
	return nil
}

func (t *memTx) SetCustomerOrderCount(ctx context.Context, id string, n int) error {
	t.setCount[id] = n
	return nil
}

// test seeding helpers

func (s *memStore) seedProduct(id, name string, stock, priceCents int) {
	s.products[id] = &Product{ID: id, Name: name, Unit: "piece", Stock: stock, PriceCents: priceCents}
}

func (s *memStore) seedCustomer(id, name string) {
	s.customers[id] = &Customer{ID: id, Name: name}
}

func (s *memStore) stockOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCountOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id].OrderCount
}
