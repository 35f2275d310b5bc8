package httpx

import (
	"context"
	"net/http/httptest"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildora/storefront/internal/catalog"
	"github.com/buildora/storefront/internal/checkout"
	kafkax "github.com/buildora/storefront/internal/kafka"
)

type capturingPublisher struct {
	values [][]byte
}

func (p *capturingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.values = append(p.values, value)
}

func (p *capturingPublisher) eventTypes(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, v := range p.values {
		var env checkout.Envelope
		require.NoError(t, kafkax.UnmarshalEnvelope(v, &env))
		out = append(out, env.EventType)
	}
	return out
}

type fakeCatalog struct {
	products map[string]*checkout.Product
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*checkout.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func eventHandler() (*CheckoutHandler, *capturingPublisher, *capturingPublisher, *capturingPublisher) {
	placed := &capturingPublisher{}
	delivered := &capturingPublisher{}
	stockLow := &capturingPublisher{}
	h := &CheckoutHandler{
		Service: "buildora-api",
		Catalog: &fakeCatalog{products: map[string]*checkout.Product{
			"PROD-LOW":  {ID: "PROD-LOW", Stock: 3},
			"PROD-FULL": {ID: "PROD-FULL", Stock: 500},
		}},
		ProducerPlaced:    placed,
		ProducerDelivered: delivered,
		ProducerStockLow:  stockLow,
	}
	return h, placed, delivered, stockLow
}

func TestStockLowGoesToItsOwnTopic(t *testing.T) {
	h, placed, delivered, stockLow := eventHandler()

	h.publishStockLow(context.Background(), []checkout.LineItem{
		{ProductID: "PROD-LOW", Qty: 1},
		{ProductID: "PROD-FULL", Qty: 1},
		{ProductID: "PROD-GONE", Qty: 1},
	})

	require.Len(t, stockLow.values, 1)
	assert.Equal(t, []string{checkout.EventStockLow}, stockLow.eventTypes(t))

	p, err := kafkax.UnwrapPayload[checkout.StockLowPayload](mustEnvelope(t, stockLow.values[0]).Payload)
	require.NoError(t, err)
	assert.Equal(t, "PROD-LOW", p.ProductID)
	assert.Equal(t, 3, p.Stock)

	// never through the order-placed or delivered producers
	assert.Empty(t, placed.values)
	assert.Empty(t, delivered.values)
}

func TestDeliveredGoesToItsOwnTopic(t *testing.T) {
	h, placed, delivered, stockLow := eventHandler()

	h.publishDelivered("77", "VEH-9", "trace-1")

	require.Len(t, delivered.values, 1)
	env := mustEnvelope(t, delivered.values[0])
	assert.Equal(t, checkout.EventOrderDelivered, env.EventType)
	assert.Equal(t, "77", env.CorrelationID)

	p, err := kafkax.UnwrapPayload[checkout.OrderDeliveredPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "VEH-9", p.VehicleID)

	assert.Empty(t, placed.values)
	assert.Empty(t, stockLow.values)
}

func TestPlacedGoesToItsOwnTopic(t *testing.T) {
	h, placed, delivered, stockLow := eventHandler()

	r := httptest.NewRequest("POST", "/checkout", nil)
	r.Header.Set("X-Request-Id", "trace-2")
	h.publishPlaced(r, "88", CheckoutReq{
		CustomerID: "CUST-1",
		Items:      []checkout.LineItem{{ProductID: "PROD-FULL", Qty: 2, PriceCents: 100}},
	}, 200)

	require.Len(t, placed.values, 1)
	assert.Equal(t, []string{checkout.EventOrderPlaced}, placed.eventTypes(t))
	assert.Empty(t, delivered.values)
	assert.Empty(t, stockLow.values)
}

func mustEnvelope(t *testing.T, b []byte) checkout.Envelope {
	t.Helper()
	var env checkout.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(b, &env))
	return env
}
