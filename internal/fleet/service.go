package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/buildora/storefront/internal/checkout"
	kafkax "github.com/buildora/storefront/internal/kafka"
	"github.com/buildora/storefront/internal/redisx"
)

// DispatchStore is the slice of Repo the worker needs.
type DispatchStore interface {
	AlreadyDispatched(ctx context.Context, orderID string) (*Assignment, error)
	Assign(ctx context.Context, orderID string, prefer Kind) (*Assignment, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EventDedup remembers event ids this worker has fully handled. Mark is
// called only after a successful handle, so an event that failed mid-way
// stays unseen and a redelivery gets a fresh attempt.
type EventDedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string)
}

// Service assigns a vehicle to every placed order. Wired as the handler of
// the OrderPlaced consumer.
type Service struct {
	Store         DispatchStore
	Dedup         EventDedup    // nil disables event dedup
	Redis         *redis.Client // nil disables status caching
	Producer      Publisher
	ServiceName   string
	DroneMaxUnits int
}

func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != checkout.EventOrderPlaced {
		return nil // ignore
	}

	if s.Dedup != nil {
		if seen, _ := s.Dedup.Seen(ctx, env.EventID); seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[checkout.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	// replayed event after a successful assignment: re-announce, don't reassign
	if a, err := s.Store.AlreadyDispatched(ctx, p.OrderID); err != nil {
		return err
	} else if a != nil {
		s.publishDispatched(a, env.TraceID)
		s.markHandled(ctx, env.EventID)
		return nil
	}

	totalUnits := 0
	for _, it := range p.Items {
		totalUnits += it.Qty
	}

	a, err := s.Store.Assign(ctx, p.OrderID, PreferredKind(totalUnits, s.DroneMaxUnits))
	if errors.Is(err, ErrNoVehicleFree) {
		// leave the order in PROCESSING; the event will be redelivered
		log.WithField("order_id", p.OrderID).Warn("no vehicle free, will retry")
		return err
	}
	if err != nil {
		return fmt.Errorf("assign order %s: %w", p.OrderID, err)
	}

	log.WithFields(log.Fields{
		"order_id":   a.OrderID,
		"vehicle_id": a.VehicleID,
		"kind":       a.Kind,
	}).Info("order dispatched")

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, a.OrderID)
		body, _ := json.Marshal(map[string]any{"status": checkout.StatusOutForDelivery})
		_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}

	s.publishDispatched(a, env.TraceID)
	s.markHandled(ctx, env.EventID)
	return nil
}

func (s *Service) markHandled(ctx context.Context, eventID string) {
	if s.Dedup != nil {
		s.Dedup.Mark(ctx, eventID)
	}
}

func (s *Service) publishDispatched(a *Assignment, trace string) {
	if s.Producer == nil {
		return
	}
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderDispatched,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: a.OrderID,
		Payload: kafkax.MustMarshal(checkout.OrderDispatchedPayload{
			OrderID:     a.OrderID,
			VehicleKind: string(a.Kind),
			VehicleID:   a.VehicleID,
		}),
	}
	s.Producer.Publish(checkout.PartitionKey(a.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderDispatched)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
