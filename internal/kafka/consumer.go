package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed. A non-nil error leaves the message uncommitted for redelivery.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

type result struct {
	msg kafka.Message
	err error
}

// Start reads messages, fans them out to the worker pool and commits
// offsets strictly in partition order: an offset is committed only once
// every earlier message of the same partition has been handled. A failed
// message pins its partition, so workers finishing later messages first
// can never commit past it.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	results := make(chan result, 1024)
	tracker := newCommitTracker()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				results <- result{msg: m, err: h(ctx, m)}
			}
		}()
	}

	committed := make(chan struct{})
	go func() {
		defer close(committed)
		for r := range results {
			if r.err != nil {
				log.WithError(r.err).WithFields(log.Fields{
					"topic":     r.msg.Topic,
					"partition": r.msg.Partition,
					"offset":    r.msg.Offset,
				}).Warn("handler error, offset held")
				tracker.complete(r.msg, false)
				time.Sleep(200 * time.Millisecond)
				continue
			}
			if m, ok := tracker.complete(r.msg, true); ok {
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.WithError(err).Warn("commit failed")
				}
			}
		}
	}()

	drain := func() {
		close(jobs)
		wg.Wait()
		close(results)
		<-committed
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			drain()
			// quiet exit on shutdown
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		tracker.track(m)
		select {
		case jobs <- m:
		case <-ctx.Done():
			drain()
			return nil
		}
	}
}
