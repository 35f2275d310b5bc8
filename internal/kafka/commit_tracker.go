package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type topicPartition struct {
	topic     string
	partition int
}

type trackedMsg struct {
	msg  kafka.Message
	done bool
	ok   bool
}

// commitTracker keeps each partition's in-flight messages in read order and
// decides which offset is safe to commit. Committing a message acknowledges
// every earlier offset of that partition too, so the safe commit point is
// the end of the contiguous run of successes at the head of the queue. A
// failed message stays at the head and holds everything behind it until it
// is redelivered and handled.
type commitTracker struct {
	mu    sync.Mutex
	parts map[topicPartition][]*trackedMsg
}

func newCommitTracker() *commitTracker {
	return &commitTracker{parts: make(map[topicPartition][]*trackedMsg)}
}

// track records m as in flight. Call in read order.
func (t *commitTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp := topicPartition{m.Topic, m.Partition}
	t.parts[tp] = append(t.parts[tp], &trackedMsg{msg: m})
}

// complete marks m handled with the given outcome and returns the newest
// message of its partition whose offset may now be committed, if any.
func (t *commitTracker) complete(m kafka.Message, ok bool) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tp := topicPartition{m.Topic, m.Partition}
	q := t.parts[tp]
	for _, e := range q {
		if e.msg.Offset == m.Offset {
			e.done, e.ok = true, ok
			break
		}
	}

	n := 0
	for n < len(q) && q[n].done && q[n].ok {
		n++
	}
	if n == 0 {
		return kafka.Message{}, false
	}
	last := q[n-1].msg
	t.parts[tp] = q[n:]
	return last, true
}
