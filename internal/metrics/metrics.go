// Package metrics exposes Prometheus collectors fed by the Event Bus, the
// same promauto pattern as cmd/automata-api's ad hoc request counter — here
// centralized into one subscriber so every binary gets identical metric
// names regardless of which events it happens to emit.
package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
)

// Collectors bundles every metric the engine exports.
type Collectors struct {
	jobsEnqueued   *prometheus.CounterVec
	jobsCompleted  prometheus.Counter
	jobsRetried    prometheus.Counter
	jobsDLQed      prometheus.Counter
	jobsCancelled  prometheus.Counter
	extensionsUp   prometheus.Gauge
	capacityHits   prometheus.Counter
}

// NewCollectors registers the engine's metrics with reg (use
// prometheus.DefaultRegisterer in production, a fresh Registry in tests).
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		jobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_engine_jobs_enqueued_total",
			Help: "Jobs accepted into the queue, by priority lane.",
		}, []string{"priority"}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_engine_jobs_completed_total",
			Help: "Jobs that reached a terminal completed state.",
		}),
		jobsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_engine_jobs_retried_total",
			Help: "Job attempts that failed and were requeued for retry.",
		}),
		jobsDLQed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_engine_jobs_dlq_total",
			Help: "Jobs moved to the dead letter queue after exhausting retries.",
		}),
		jobsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_engine_jobs_cancelled_total",
			Help: "Jobs cancelled by API request.",
		}),
		extensionsUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_engine_extensions_connected",
			Help: "Extension sessions currently in the connected state.",
		}),
		capacityHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_engine_capacity_reached_total",
			Help: "Times the queue crossed into the full state (capacity.reached).",
		}),
	}
}

// Run subscribes to every Event Bus topic relevant to metrics and updates
// collectors until ctx is cancelled. Intended to run as its own goroutine
// (or suture.Service, see internal/supervise).
func (c *Collectors) Run(ctx context.Context, bus *eventbus.Bus, logger *slog.Logger) error {
	events := bus.Subscribe(
		domain.EventItemAdded,
		domain.EventItemCompleted,
		domain.EventItemRetry,
		domain.EventItemDLQ,
		domain.EventItemCancelled,
		domain.EventExtensionConnected,
		domain.EventExtensionDisconnected,
		domain.EventCapacityReached,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			c.apply(evt, logger)
		}
	}
}

func (c *Collectors) apply(evt domain.Event, logger *slog.Logger) {
	switch evt.Type {
	case domain.EventItemAdded:
		priority, _ := evt.Attrs["priority"].(string)
		c.jobsEnqueued.WithLabelValues(priority).Inc()
	case domain.EventItemCompleted:
		c.jobsCompleted.Inc()
	case domain.EventItemRetry:
		c.jobsRetried.Inc()
	case domain.EventItemDLQ:
		c.jobsDLQed.Inc()
	case domain.EventItemCancelled:
		c.jobsCancelled.Inc()
	case domain.EventExtensionConnected:
		c.extensionsUp.Inc()
	case domain.EventExtensionDisconnected:
		c.extensionsUp.Dec()
	case domain.EventCapacityReached:
		c.capacityHits.Inc()
	default:
		logger.Debug("metrics: unhandled event type", "type", evt.Type)
	}
}
