package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/buildora/storefront/internal/checkout"
	"github.com/buildora/storefront/internal/fleet"
	kafkax "github.com/buildora/storefront/internal/kafka"
	"github.com/buildora/storefront/internal/postgres"
	"github.com/buildora/storefront/internal/redisx"
)

// Products at or under this level trigger a StockLow event after checkout.
const stockLowThreshold = 10

// Publisher is one topic-bound producer; kafkax.Producer satisfies it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type ProductGetter interface {
	Get(ctx context.Context, id string) (*checkout.Product, error)
}

type CheckoutHandler struct {
	Svc     *checkout.Service
	Orders  *postgres.OrdersRepo
	Catalog ProductGetter
	Fleet   *fleet.Repo
	Redis   *redis.Client
	Service string

	// one producer per topic so every event lands where it is declared
	ProducerPlaced    Publisher
	ProducerDelivered Publisher
	ProducerStockLow  Publisher
}

type CheckoutReq struct {
	RequestID    string              `json:"request_id,omitempty"` // client idempotency key
	CustomerID   string              `json:"customer_id"`
	CustomerName string              `json:"customer_name"`
	Items        []checkout.LineItem `json:"items"`
	Address      checkout.Address    `json:"shipping_address"`
}

type CheckoutResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int    `json:"total_cents"`
	Idempotent bool   `json:"idempotent,omitempty"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/delivered", h.markDelivered)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/customers/{id}/orders", h.listCustomerOrders)
}

func (h *CheckoutHandler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.Orders.ListByCustomer(ctx, chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []checkout.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *CheckoutHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CustomerID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing customer_id or items")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path idempotency: a replayed checkout with the same request id
	// returns the already-placed order instead of decrementing stock twice.
	if req.RequestID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.RequestID)
		if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && orderID != "" {
			if o, err := h.Orders.GetOrder(ctx, orderID); err == nil {
				writeJSON(w, http.StatusOK, CheckoutResp{OrderID: o.ID, TotalCents: o.TotalCents, Idempotent: true})
				return
			}
		}
	}

	// The total is computed here, at the process edge, from the submitted
	// line-item prices; the transaction persists it verbatim.
	total := 0
	for _, it := range req.Items {
		total += it.PriceCents * it.Qty
	}

	orderID, err := h.Svc.PlaceOrder(ctx, checkout.PlaceOrderRequest{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Items:        req.Items,
		ShippingAddr: req.Address,
		TotalCents:   total,
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	if req.RequestID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.RequestID)
		_ = h.Redis.Set(ctx, idemKey, orderID, redisx.TTLIdempotency).Err()
	}
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"PROCESSING"}`, redisx.TTLStatusCache).Err()

	h.publishPlaced(r, orderID, req, total)
	h.publishStockLow(ctx, req.Items)

	writeJSON(w, http.StatusCreated, CheckoutResp{OrderID: orderID, TotalCents: total})
}

func (h *CheckoutHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var (
		notFound *checkout.ProductNotFoundError
		noStock  *checkout.InsufficientStockError
		noCust   *checkout.CustomerNotFoundError
	)
	switch {
	case errors.As(err, &noStock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"product_id": noStock.ProductID,
			"available":  noStock.Available,
			"requested":  noStock.Requested,
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "product not found",
			"product_id": notFound.ProductID,
		})
	case errors.As(err, &noCust):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       "customer not found",
			"customer_id": noCust.CustomerID,
		})
	case errors.Is(err, checkout.ErrContention), errors.Is(err, checkout.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "busy, please retry")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *CheckoutHandler) publishPlaced(r *http.Request, orderID string, req CheckoutReq, total int) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(checkout.OrderPlacedPayload{
			OrderID:      orderID,
			CustomerID:   req.CustomerID,
			CustomerName: req.CustomerName,
			Items:        req.Items,
			ShippingAddr: req.Address,
			TotalCents:   total,
		}),
	}
	h.ProducerPlaced.Publish(checkout.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// publishStockLow reads back the just-decremented products and raises a
// StockLow event for any at or under the threshold. Best effort.
func (h *CheckoutHandler) publishStockLow(ctx context.Context, items []checkout.LineItem) {
	if h.Catalog == nil || h.ProducerStockLow == nil {
		return
	}
	for _, it := range items {
		p, err := h.Catalog.Get(ctx, it.ProductID)
		if err != nil || p.Stock > stockLowThreshold {
			continue
		}
		ev := checkout.Envelope{
			EventID:       uuid.NewString(),
			EventType:     checkout.EventStockLow,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			CorrelationID: p.ID,
			Payload:       kafkax.MustMarshal(checkout.StockLowPayload{ProductID: p.ID, Stock: p.Stock}),
		}
		h.ProducerStockLow.Publish(checkout.PartitionKey(p.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventStockLow)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, orderID)
	if errors.Is(err, postgres.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *CheckoutHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	status, err := h.Orders.GetOrderStatus(ctx, orderID)
	if errors.Is(err, postgres.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body, _ := json.Marshal(map[string]any{"status": status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *CheckoutHandler) markDelivered(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, checkout.StatusDelivered, checkout.EventOrderDelivered)
}

func (h *CheckoutHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, checkout.StatusCancelled, "")
}

func (h *CheckoutHandler) transition(w http.ResponseWriter, r *http.Request, to checkout.Status, eventType string) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Orders.TransitionStatus(ctx, orderID, to); err != nil {
		switch {
		case errors.Is(err, postgres.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, postgres.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// free the vehicle if one was out on this order
	var vehicleID string
	if h.Fleet != nil {
		if id, err := h.Fleet.Release(ctx, orderID); err == nil {
			vehicleID = id
		}
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": to})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()

	if eventType == checkout.EventOrderDelivered {
		h.publishDelivered(orderID, vehicleID, r.Header.Get("X-Request-Id"))
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": orderID, "status": to})
}

func (h *CheckoutHandler) publishDelivered(orderID, vehicleID, trace string) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderDelivered,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(checkout.OrderDeliveredPayload{OrderID: orderID, VehicleID: vehicleID}),
	}
	h.ProducerDelivered.Publish(checkout.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderDelivered)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
