// Package dispatcher implements the Router/Dispatcher tick loop and the
// Result Reaper's state transitions: the single task that owns the Queue
// Store's mutations end to end, from picking the next job through binding
// it to an extension to resolving its outcome.
// Grounded on internal/orchestrator's run loop (poll -> pick step ->
// execute -> record result), repurposed from DAG-step execution to
// job/extension binding.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
	"github.com/shaiso/dispatch-engine/internal/router"
	"github.com/shaiso/dispatch-engine/internal/snapshot"
	"github.com/shaiso/dispatch-engine/internal/wire"
)

// Defaults for dispatcher timing.
const (
	DefaultProcessingTimeout = 30 * time.Second
	rateLimitBackoff         = 100 * time.Millisecond
	emptyQueueBackoff        = 100 * time.Millisecond
	noEligibleWorkerBackoff  = 100 * time.Millisecond
)

// Config wires a Dispatcher to its collaborators. All fields required
// except Logger, ProcessingTimeout, Now and Snapshot, which default when unset.
type Config struct {
	Queue             *queue.Store
	Registry          *registry.Registry
	RateLimiter       *ratelimit.Bucket
	Bus               *eventbus.Bus
	ProcessingTimeout time.Duration
	Logger            *slog.Logger
	Now               func() time.Time

	// Snapshot is the optional persistence hook. A nil value
	// (or a *snapshot.Store built over a nil pool) makes every Save a
	// no-op, so the dispatcher always calls it unconditionally.
	Snapshot *snapshot.Store
}

// Dispatcher drives dispatch: one goroutine runs Run's loop, and the
// pending-request map is reached only through Dispatcher's methods. The
// queue is shared: the HTTP edge, the Failover Controller (via
// Queue().RequeueDetached) and the retention sweep also call queue.Store
// methods directly, serialized by the Store's own mutex.
type Dispatcher struct {
	queue       *queue.Store
	registry    *registry.Registry
	rateLimiter *ratelimit.Bucket
	bus         *eventbus.Bus
	pending     *router.PendingMap
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
	snapshot    *snapshot.Store

	mu       sync.Mutex
	timers   map[uuid.UUID]*time.Timer
	draining bool
}

// New constructs a Dispatcher ready to Run.
func New(cfg Config) *Dispatcher {
	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	snap := cfg.Snapshot
	if snap == nil {
		snap = snapshot.New(nil, logger)
	}
	return &Dispatcher{
		queue:       cfg.Queue,
		registry:    cfg.Registry,
		rateLimiter: cfg.RateLimiter,
		bus:         cfg.Bus,
		pending:     router.NewPendingMap(),
		timeout:     timeout,
		logger:      logger,
		now:         now,
		snapshot:    snap,
		timers:      make(map[uuid.UUID]*time.Timer),
	}
}

// Drain stops the dispatcher from binding new work; in-flight jobs are
// left to resolve normally (graceful-shutdown option (a)).
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()
}

func (d *Dispatcher) isDraining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

// Run executes the tick loop until ctx is cancelled (steps 1-4).
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.isDraining() {
			if !sleepCtx(ctx, emptyQueueBackoff) {
				return ctx.Err()
			}
			continue
		}

		if !d.rateLimiter.TryConsume() {
			if !sleepCtx(ctx, rateLimitBackoff) {
				return ctx.Err()
			}
			continue
		}

		job := d.queue.Pop()
		if job == nil {
			if !sleepCtx(ctx, emptyQueueBackoff) {
				return ctx.Err()
			}
			continue
		}

		if !d.tryBind(job) {
			if !sleepCtx(ctx, noEligibleWorkerBackoff) {
				return ctx.Err()
			}
		}
	}
}

// tryBind picks an extension for job and binds it; returns false if no
// eligible extension was found (job has been put back at its lane head).
func (d *Dispatcher) tryBind(job *domain.Job) bool {
	candidates := d.registry.Connected()
	session, reason, confidence, ok := router.Select(candidates, job, d.now())
	if !ok {
		d.queue.Requeue(job)
		return false
	}
	d.bind(job, session, reason, confidence, 0)
	return true
}

// bind moves job into in-flight, records the pending assignment, starts
// its per-job timeout, and sends the work frame (step 4).
func (d *Dispatcher) bind(job *domain.Job, session *domain.ExtensionSession, reason string, confidence float64, retryCount int) {
	d.queue.MarkProcessing(job, session.ID)
	d.registry.IncrementInFlight(session.ID, 1)
	d.snapshot.Save(context.Background(), job)

	timer := time.AfterFunc(d.timeout, func() { d.onTimeout(job.ID) })
	d.mu.Lock()
	d.timers[job.ID] = timer
	d.mu.Unlock()

	d.pending.Add(job.ID, session.ID, d.now(), retryCount, func() { timer.Stop() })

	d.logger.Debug("dispatcher: bound job", "job_id", job.ID, "extension_id", session.ID,
		"reason", reason, "confidence", confidence)

	err := d.registry.Send(session.ID, wire.Frame{
		Type:      wire.FrameGenerateImage,
		Timestamp: d.now(),
		Data: map[string]any{
			"requestId":     job.ID.String(),
			"prompt":        job.Payload.URL,
			"model":         job.Payload.AITool,
			"parameters":    job.Payload.Metadata,
			"correlationId": job.CorrelationID,
		},
	})
	if err != nil {
		d.logger.Warn("dispatcher: send failed, failing job", "job_id", job.ID, "extension_id", session.ID, "error", err)
		d.Fail(job.ID, "send failed: "+err.Error())
	}
}

// onTimeout synthesizes a fail(timeout) if the job is still pending
// resolution. A no-op if complete/fail already resolved it
// (Resolve removed the pending entry and stopped this timer first).
func (d *Dispatcher) onTimeout(jobID uuid.UUID) {
	if _, ok := d.pending.Get(jobID); !ok {
		return
	}
	d.logger.Warn("dispatcher: processing timeout", "job_id", jobID)
	d.Fail(jobID, "timeout")
}

// Complete resolves a job as successfully finished.
// Unknown or already-resolved jobIds are logged and ignored (idempotence).
func (d *Dispatcher) Complete(jobID uuid.UUID, result *domain.Result, processingTime time.Duration) {
	req := d.pending.Resolve(jobID)
	if req == nil {
		d.logger.Debug("dispatcher: complete for unknown/resolved job", "job_id", jobID)
		return
	}
	d.clearTimer(jobID)

	job, ok := d.queue.Complete(jobID, result, processingTime)
	if !ok {
		return
	}
	d.registry.IncrementInFlight(req.ExtensionID, -1)
	d.registry.RecordSuccess(req.ExtensionID, float64(processingTime.Milliseconds()))
	d.snapshot.Save(context.Background(), job)
}

// Fail resolves a job as failed: retries with backoff
// up to MaxAttempts, then DLQs. Unknown or already-resolved jobIds are a
// no-op (idempotence).
func (d *Dispatcher) Fail(jobID uuid.UUID, errMsg string) {
	req := d.pending.Resolve(jobID)
	if req == nil {
		d.logger.Debug("dispatcher: fail for unknown/resolved job", "job_id", jobID)
		return
	}
	d.clearTimer(jobID)

	job, ok := d.queue.GetJob(jobID)
	if !ok {
		return
	}
	d.registry.IncrementInFlight(req.ExtensionID, -1)
	d.registry.RecordFailure(req.ExtensionID)

	if !job.CanRetry() {
		d.queue.MoveToDLQ(job, errMsg)
		d.snapshot.Save(context.Background(), job)
		return
	}
	delay := queue.BackoffDelay(d.queue.RetryDelaysMs(), job.Attempts)
	d.queue.ReenqueueForRetry(job, delay, errMsg)
	d.snapshot.Save(context.Background(), job)
}

// Progress handles a progress frame: it changes no job state and records no
// per-job timestamp; it only logs when the job is not pending. Session
// liveness is updated separately by registry.MarkActivity at the wire layer.
func (d *Dispatcher) Progress(jobID uuid.UUID) {
	if _, ok := d.pending.Get(jobID); !ok {
		d.logger.Debug("dispatcher: progress for unknown job", "job_id", jobID)
	}
}

// Rebind is called by the Failover Controller to immediately reassign a
// job abandoned by a dead session, scoring over the remaining connected
// sessions. Returns false if no eligible session was found,
// in which case the caller must return the job to the queue itself.
func (d *Dispatcher) Rebind(job *domain.Job, retryCount int) bool {
	candidates := d.registry.Connected()
	session, reason, confidence, ok := router.Select(candidates, job, d.now())
	if !ok {
		return false
	}
	d.bind(job, session, reason, confidence, retryCount)
	return true
}

// PendingFor exposes the router's bookkeeping for extensionID's in-flight
// jobs, used by the Failover Controller to enumerate what to rebind.
func (d *Dispatcher) PendingFor(extensionID string) []*router.PendingRequest {
	return d.pending.InFlightFor(extensionID)
}

// ResolveWithoutQueueChange removes jobID's pending entry and stops its
// timer without touching queue state, used by the Failover Controller
// immediately before it detaches a job from a dead session (the job's
// queue-side state is updated separately, by Requeue or Rebind).
func (d *Dispatcher) ResolveWithoutQueueChange(jobID uuid.UUID) *router.PendingRequest {
	req := d.pending.Resolve(jobID)
	d.clearTimer(jobID)
	return req
}

// Queue exposes the underlying Queue Store for callers (HTTP surface,
// Failover Controller) that need direct read/requeue access.
func (d *Dispatcher) Queue() *queue.Store { return d.queue }

func (d *Dispatcher) clearTimer(jobID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[jobID]; ok {
		timer.Stop()
		delete(d.timers, jobID)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, returning false if
// cancelled (so callers can propagate shutdown instead of looping).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
