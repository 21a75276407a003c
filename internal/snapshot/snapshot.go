// Package snapshot is the optional persistence hook:
// the engine is in-memory by default, but a configured DSN lets it persist
// job state to Postgres where it can be inspected across a restart; nothing
// replays the snapshots into the queue on startup, so a restart still starts
// from an empty queue. Grounded on internal/repo's pgx pool + repo
// pattern, with writes behind this package's own circuit breaker
// (internal/eventprocessor's style) so a stalled database degrades to
// "snapshots stop happening" rather than blocking the Dispatcher.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// schema is applied with CREATE TABLE IF NOT EXISTS on first connect so the
// hook is usable against a bare database without a separate migration step.
const schema = `
CREATE TABLE IF NOT EXISTS dispatch_job_snapshots (
	id              UUID PRIMARY KEY,
	priority        TEXT NOT NULL,
	status          TEXT NOT NULL,
	payload         JSONB NOT NULL,
	attempt_count   INT NOT NULL,
	correlation_id  TEXT NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`

// NewPool opens a pgx pool against dsn and ensures the snapshot schema
// exists. Mirrors internal/repo.NewPool's health-check-on-connect pattern.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse dsn: %w", err)
	}
	cfg.MaxConns = 5
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot: ping db: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot: ensure schema: %w", err)
	}

	return pool, nil
}

// Store persists job state to Postgres. A Store built with a nil
// pool is a no-op — every method returns immediately — so the Dispatcher
// can call it unconditionally whether or not persistence is configured.
type Store struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// New wraps pool in a Store. pool may be nil (persistence disabled).
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if pool == nil {
		return &Store{logger: logger}
	}

	settings := gobreaker.Settings{
		Name:        "snapshot.write",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("snapshot: circuit breaker state change", "from", from, "to", to)
		},
	}

	return &Store{
		pool:    pool,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Save upserts job's current state. Errors are logged, not returned to the
// caller — a failed snapshot write must never fail the job it describes.
func (s *Store) Save(ctx context.Context, job *domain.Job) {
	if s.pool == nil {
		return
	}

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		s.logger.Error("snapshot: marshal payload", "job_id", job.ID, "error", err)
		return
	}

	_, err = s.breaker.Execute(func() (any, error) {
		_, execErr := s.pool.Exec(ctx, `
			INSERT INTO dispatch_job_snapshots (id, priority, status, payload, attempt_count, correlation_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				payload = EXCLUDED.payload,
				attempt_count = EXCLUDED.attempt_count,
				updated_at = EXCLUDED.updated_at
		`, job.ID, string(job.Priority), string(job.Status), payload, job.Attempts, job.CorrelationID, time.Now())
		return nil, execErr
	})
	if err != nil {
		s.logger.Warn("snapshot: save failed", "job_id", job.ID, "error", err)
	}
}

// LoadPending returns every snapshot whose last known status was not
// terminal. Nothing in the engine calls it at startup; the Queue Store is
// not restored from snapshots.
func (s *Store) LoadPending(ctx context.Context) ([]*domain.Job, error) {
	if s.pool == nil {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, priority, status, payload, attempt_count, correlation_id
		FROM dispatch_job_snapshots
		WHERE status NOT IN ('completed', 'cancelled', 'dead')
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load pending: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var (
			job          domain.Job
			priority     string
			status       string
			payloadBytes []byte
		)
		if err := rows.Scan(&job.ID, &priority, &status, &payloadBytes, &job.Attempts, &job.CorrelationID); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		job.Priority = domain.Priority(priority)
		job.Status = domain.JobStatus(status)
		if err := json.Unmarshal(payloadBytes, &job.Payload); err != nil {
			return nil, fmt.Errorf("snapshot: unmarshal payload: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
