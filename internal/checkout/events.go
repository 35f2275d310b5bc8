package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced     = "OrderPlaced"
	EventOrderDispatched = "OrderDispatched"
	EventOrderDelivered  = "OrderDelivered"
	EventStockLow        = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "buildora-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID      string     `json:"order_id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Items        []LineItem `json:"items"`
	ShippingAddr Address    `json:"shipping_address"`
	TotalCents   int        `json:"total_cents"`
}

type OrderDispatchedPayload struct {
	OrderID     string `json:"order_id"`
	VehicleKind string `json:"vehicle_kind"` // DRONE | TRUCK
	VehicleID   string `json:"vehicle_id"`
}

type OrderDeliveredPayload struct {
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}
