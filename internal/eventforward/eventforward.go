// Package eventforward bridges the internal Event Bus to an external
// RabbitMQ exchange, letting outside consumers follow job lifecycle history
// without polling the HTTP API. It is an optional sink: a nil connection makes Forwarder a no-op so the engine runs
// with or without a broker present.
//
// Circuit breaking is grounded on tomtom215-cartographus's
// internal/eventprocessor circuit breaker: publish failures trip the
// breaker rather than letting a stalled broker connection back up the
// Event Bus subscriber's buffered channel.
package eventforward

import (
	"context"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/mq"
)

var topicRoutingKey = map[domain.EventType]mq.RoutingKey{
	domain.EventItemAdded:      mq.RoutingKeyEnqueued,
	domain.EventItemProcessing: mq.RoutingKeyDispatched,
	domain.EventItemCompleted:  mq.RoutingKeyCompleted,
	domain.EventItemRetry:      mq.RoutingKeyFailed,
	domain.EventItemDLQ:        mq.RoutingKeyDLQ,
}

// Forwarder republishes selected Event Bus topics onto mq.ExchangeJobs.
type Forwarder struct {
	publisher *mq.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	logger    *slog.Logger
}

// New builds a Forwarder over an already-connected mq.Connection. Pass a
// nil conn to get a Forwarder whose Run is a no-op (broker not configured).
func New(conn *mq.Connection, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	if conn == nil {
		return &Forwarder{logger: logger}
	}

	settings := gobreaker.Settings{
		Name:        "eventforward.publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("eventforward: circuit breaker state change", "from", from, "to", to)
		},
	}

	return &Forwarder{
		publisher: mq.NewPublisher(conn, logger),
		breaker:   gobreaker.NewCircuitBreaker[any](settings),
		logger:    logger,
	}
}

// Run subscribes to the forwarded topics and republishes each one until ctx
// is cancelled or the subscriber channel closes.
func (f *Forwarder) Run(ctx context.Context, bus *eventbus.Bus) error {
	if f.publisher == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	topics := make([]domain.EventType, 0, len(topicRoutingKey))
	for t := range topicRoutingKey {
		topics = append(topics, t)
	}
	events := bus.Subscribe(topics...)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			f.forward(ctx, evt)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, evt domain.Event) {
	key, known := topicRoutingKey[evt.Type]
	if !known {
		return
	}

	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.publisher.Publish(ctx, key, evt)
	})
	if err != nil {
		f.logger.Warn("eventforward: publish failed", "topic", key, "job_id", evt.JobID, "error", err)
	}
}
