package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildora/storefront/internal/checkout"
	kafkax "github.com/buildora/storefront/internal/kafka"
)

type fakeStore struct {
	assigned  map[string]*Assignment
	assignErr error

	assignCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{assigned: make(map[string]*Assignment)}
}

func (f *fakeStore) AlreadyDispatched(ctx context.Context, orderID string) (*Assignment, error) {
	return f.assigned[orderID], nil
}

func (f *fakeStore) Assign(ctx context.Context, orderID string, prefer Kind) (*Assignment, error) {
	f.assignCalls++
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	a := &Assignment{OrderID: orderID, VehicleID: "VEH-1", Kind: prefer, AssignedAt: time.Now()}
	f.assigned[orderID] = a
	return a, nil
}

type fakeDedup struct {
	seen map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (f *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedup) Mark(ctx context.Context, eventID string) {
	f.seen[eventID] = true
}

type fakePublisher struct {
	messages [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.messages = append(f.messages, value)
}

func placedMessage(t *testing.T, orderID string, qty int) kafkago.Message {
	t.Helper()
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(checkout.OrderPlacedPayload{
			OrderID:    orderID,
			CustomerID: "CUST-1",
			Items:      []checkout.LineItem{{ProductID: "PROD-001", Qty: qty, PriceCents: 100}},
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleOrderPlacedAssignsVehicle(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := &Service{Store: store, Producer: pub, ServiceName: "test-dispatch", DroneMaxUnits: 20}

	err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, "42", 3))
	require.NoError(t, err)

	require.NotNil(t, store.assigned["42"])
	assert.Equal(t, KindDrone, store.assigned["42"].Kind)
	require.Len(t, pub.messages, 1)

	var env checkout.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(pub.messages[0], &env))
	assert.Equal(t, checkout.EventOrderDispatched, env.EventType)

	p, err := kafkax.UnwrapPayload[checkout.OrderDispatchedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "42", p.OrderID)
	assert.Equal(t, "VEH-1", p.VehicleID)
}

func TestHandleOrderPlacedBulkGoesByTruck(t *testing.T) {
	store := newFakeStore()
	svc := &Service{Store: store, Producer: &fakePublisher{}, DroneMaxUnits: 20}

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), placedMessage(t, "43", 50)))
	assert.Equal(t, KindTruck, store.assigned["43"].Kind)
}

func TestHandleOrderPlacedIdempotent(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := &Service{Store: store, Producer: pub, DroneMaxUnits: 20}

	m := placedMessage(t, "44", 2)
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))

	// replay re-announces but never assigns twice
	assert.Equal(t, 1, store.assignCalls)
	assert.Len(t, pub.messages, 2)
}

func TestHandleOrderPlacedNoVehicleFreeLeavesEventUncommitted(t *testing.T) {
	store := newFakeStore()
	store.assignErr = ErrNoVehicleFree
	svc := &Service{Store: store, Producer: &fakePublisher{}, DroneMaxUnits: 20}

	err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, "45", 2))
	assert.ErrorIs(t, err, ErrNoVehicleFree)
}

func TestHandleOrderPlacedNoVehicleThenRetry(t *testing.T) {
	store := newFakeStore()
	store.assignErr = ErrNoVehicleFree
	dedup := newFakeDedup()
	svc := &Service{Store: store, Dedup: dedup, Producer: &fakePublisher{}, DroneMaxUnits: 20}

	m := placedMessage(t, "46", 2)
	err := svc.HandleOrderPlaced(context.Background(), m)
	require.ErrorIs(t, err, ErrNoVehicleFree)

	// the failed attempt must not leave a handled marker behind
	assert.Empty(t, dedup.seen)

	// a vehicle comes back; the redelivered event now dispatches the order
	store.assignErr = nil
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	require.NotNil(t, store.assigned["46"])
	assert.Equal(t, 2, store.assignCalls)
	assert.Len(t, dedup.seen, 1)
}

func TestHandleOrderPlacedSkipsSeenEvent(t *testing.T) {
	store := newFakeStore()
	dedup := newFakeDedup()
	pub := &fakePublisher{}
	svc := &Service{Store: store, Dedup: dedup, Producer: pub, DroneMaxUnits: 20}

	m := placedMessage(t, "47", 2)
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))

	assert.Equal(t, 1, store.assignCalls)
	assert.Len(t, pub.messages, 1) // seen event is dropped before any work
}

func TestHandleOrderPlacedIgnoresOtherEvents(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := &Service{Store: store, Producer: pub}

	env := checkout.Envelope{
		EventID:   uuid.NewString(),
		EventType: checkout.EventStockLow,
		Payload:   kafkax.MustMarshal(checkout.StockLowPayload{ProductID: "PROD-001", Stock: 2}),
	}
	err := svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)})
	require.NoError(t, err)
	assert.Zero(t, store.assignCalls)
	assert.Empty(t, pub.messages)
}

func TestHandleOrderPlacedBadEnvelope(t *testing.T) {
	svc := &Service{Store: newFakeStore()}
	err := svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: []byte("{not json")})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoVehicleFree))
}

func TestPreferredKind(t *testing.T) {
	assert.Equal(t, KindDrone, PreferredKind(5, 20))
	assert.Equal(t, KindDrone, PreferredKind(20, 20))
	assert.Equal(t, KindTruck, PreferredKind(21, 20))
	assert.Equal(t, KindTruck, PreferredKind(1, 0)) // drones disabled
	assert.Equal(t, KindTruck, OtherKind(KindDrone))
	assert.Equal(t, KindDrone, OtherKind(KindTruck))
}
