package checkout

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"` // e.g. "bag", "m3", "piece"
	Stock      int       `json:"stock"`
	PriceCents int       `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	OrderCount int       `json:"order_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Address is a value snapshot taken at checkout. Orders keep their own copy
// so later edits to the customer's address book do not rewrite history.
type Address struct {
	Label   string `json:"label"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// LineItem carries the price at the time the item was added to the cart,
// not a live product reference.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type Order struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Status       Status     `json:"status"`
	Items        []LineItem `json:"items,omitempty"`
	ShippingAddr Address    `json:"shipping_address"`
	TotalCents   int        `json:"total_cents"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PlaceOrderRequest is the input to the order placement transaction.
// TotalCents is persisted verbatim; the HTTP layer computes it from the
// submitted items before calling the core.
type PlaceOrderRequest struct {
	CustomerID   string
	CustomerName string
	Items        []LineItem
	ShippingAddr Address
	TotalCents   int
}
