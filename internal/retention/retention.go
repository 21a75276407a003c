// Package retention periodically compacts the DLQ, adapted from
// internal/scheduler's cron-tick pattern (robfig/cron/v3 parser +
// scheduled Tick method) and repurposed from "create runs from due
// schedules" to "purge DLQ entries past their retention age" — an optional
// maintenance sweep, run only when a cron schedule is configured.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/dispatch-engine/internal/queue"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Purger runs the DLQ retention sweep on a cron schedule.
type Purger struct {
	queue    *queue.Store
	schedule cron.Schedule
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Purger. cronExpr follows the standard 5-field cron syntax
// (minute hour dom month dow); maxAge is how old a DLQ entry's CompletedAt
// must be before it is purged.
func New(q *queue.Store, cronExpr string, maxAge time.Duration, logger *slog.Logger) (*Purger, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("retention: parse cron expression %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{queue: q, schedule: schedule, maxAge: maxAge, logger: logger, now: time.Now}, nil
}

// Run blocks, firing Tick at each scheduled time, until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) error {
	next := p.schedule.Next(p.now())
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			p.Tick()
			next = p.schedule.Next(p.now())
		}
	}
}

// Tick purges every DLQ entry older than maxAge. Errors from an individual
// entry never block the rest of the sweep — there are none here since
// PurgeDLQOlderThan is a bulk in-memory operation, but the shape matches
// a per-item tolerant loop for consistency.
func (p *Purger) Tick() {
	cutoff := p.now().Add(-p.maxAge)
	purged := p.queue.PurgeDLQOlderThan(cutoff)
	if purged > 0 {
		p.logger.Info("retention: purged aged DLQ entries", "count", purged, "cutoff", cutoff)
	}
}
