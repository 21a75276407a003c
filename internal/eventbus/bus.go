// Package eventbus is the engine's internal pub/sub: an explicit Event Bus
// with named topics, in place of scattering event emission across
// scattered ad hoc hooks. Publish delivers each event at most once to each
// subscriber within the local process; subscribers must be non-blocking —
// slow subscribers do not back-pressure the engine — each subscriber gets
// its own buffered channel, and an event is dropped for a subscriber whose
// buffer is full rather than stalling Publish.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

const defaultSubscriberBuffer = 256

// Bus fans out Events to any number of topic subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[domain.EventType][]*subscription
	all         []*subscription
	logger      *slog.Logger
}

type subscription struct {
	ch     chan domain.Event
	dropped uint64
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[domain.EventType][]*subscription),
		logger:      logger,
	}
}

// Subscribe returns a receive-only channel of events for the given topics.
// Passing no topics subscribes to every event type.
func (b *Bus) Subscribe(topics ...domain.EventType) <-chan domain.Event {
	sub := &subscription{ch: make(chan domain.Event, defaultSubscriberBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(topics) == 0 {
		b.all = append(b.all, sub)
		return sub.ch
	}
	for _, t := range topics {
		b.subscribers[t] = append(b.subscribers[t], sub)
	}
	return sub.ch
}

// Publish fans an event out to every matching subscriber. Non-blocking:
// a full subscriber buffer drops the event for that subscriber and logs
// at debug level instead of stalling the caller (the dispatcher loop).
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers[evt.Type] {
		b.deliver(sub, evt)
	}
	for _, sub := range b.all {
		b.deliver(sub, evt)
	}
}

func (b *Bus) deliver(sub *subscription, evt domain.Event) {
	select {
	case sub.ch <- evt:
	default:
		sub.dropped++
		b.logger.Debug("eventbus: dropped event, subscriber buffer full",
			"type", evt.Type, "dropped_total", sub.dropped)
	}
}
