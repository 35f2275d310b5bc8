package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Dedup is a redis-backed handled-event marker, keyed per consuming service.
type Dedup struct {
	Client  *redis.Client
	Service string
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Client, d.key(eventID))
}

func (d *Dedup) Mark(ctx context.Context, eventID string) {
	if err := d.Client.Set(ctx, d.key(eventID), "1", TTLDedup).Err(); err != nil {
		log.WithError(err).WithField("event_id", eventID).Warn("dedup mark failed")
	}
}

func (d *Dedup) key(eventID string) string {
	return fmt.Sprintf(KeyDedup, d.Service, eventID)
}
