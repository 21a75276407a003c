// Package queue implements the Queue Store: three FIFO
// priority lanes, an in-flight set, and a dead-letter queue, with an
// optional capacity cap. Every mutation goes through Store's single
// mutex, so the store changes as one consistent unit. The dispatcher
// goroutine is the main caller; the HTTP edge, the Failover Controller and
// the retention sweep also call these methods directly.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"

	"sync"
)

// lanes in strict priority order high > normal > low.
var lanePriorities = []domain.Priority{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow}

// Config controls capacity and retry behavior of a Store.
type Config struct {
	// MaxQueueSize caps lanes+in-flight combined; 0 disables the cap.
	MaxQueueSize int
	// RetryDelaysMs is the ordered backoff schedule (default {1s,5s,15s}).
	RetryDelaysMs []int
	// DefaultMaxAttempts is used for jobs enqueued without an explicit value.
	DefaultMaxAttempts int
	Bus                *eventbus.Bus
	Now                func() time.Time
}

// Store is the in-memory Queue Store.
type Store struct {
	mu sync.Mutex

	lanes    map[domain.Priority][]*domain.Job
	inFlight map[uuid.UUID]*domain.Job
	dlq      []*domain.Job
	byID     map[uuid.UUID]*domain.Job

	maxQueueSize       int
	retryDelaysMs      []int
	defaultMaxAttempts int

	totalEnqueued  int64
	totalProcessed int64
	totalFailed    int64

	processingTimeSum   time.Duration
	processingTimeCount int64

	capacityReached bool

	bus *eventbus.Bus
	now func() time.Time
}

// New constructs an empty Store.
func New(cfg Config) *Store {
	delays := cfg.RetryDelaysMs
	if delays == nil {
		delays = DefaultRetryDelaysMs
	}
	maxAttempts := cfg.DefaultMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		lanes:              make(map[domain.Priority][]*domain.Job, len(lanePriorities)),
		inFlight:           make(map[uuid.UUID]*domain.Job),
		byID:               make(map[uuid.UUID]*domain.Job),
		maxQueueSize:       cfg.MaxQueueSize,
		retryDelaysMs:      delays,
		defaultMaxAttempts: maxAttempts,
		bus:                cfg.Bus,
		now:                now,
	}
	for _, p := range lanePriorities {
		s.lanes[p] = nil
	}
	return s
}

// depthLocked returns lanes+in-flight count, used for the capacity cap.
func (s *Store) depthLocked() int {
	total := len(s.inFlight)
	for _, lane := range s.lanes {
		total += len(lane)
	}
	return total
}

// Enqueue admits a new job, failing with ErrFull if the capacity cap is
// set and reached. Emits item.added, and capacity.reached
// exactly once per crossing into the full state.
func (s *Store) Enqueue(payload domain.Payload, priority domain.Priority, maxAttempts int, correlationID string) (*domain.Job, error) {
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if maxAttempts <= 0 {
		maxAttempts = s.defaultMaxAttempts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxQueueSize > 0 && s.depthLocked() >= s.maxQueueSize {
		return nil, ErrFull
	}

	job := domain.NewJob(payload, priority, maxAttempts, correlationID)
	s.lanes[priority] = append(s.lanes[priority], job)
	s.byID[job.ID] = job
	s.totalEnqueued++

	s.publish(domain.EventItemAdded, job, "")

	if s.maxQueueSize > 0 && s.depthLocked() >= s.maxQueueSize && !s.capacityReached {
		s.capacityReached = true
		s.publish(domain.EventCapacityReached, job, "")
	} else if s.maxQueueSize == 0 || s.depthLocked() < s.maxQueueSize {
		s.capacityReached = false
	}

	return job, nil
}

// Pop selects the next eligible job selection rule:
// scan high -> normal -> low; within a lane prefer any item whose
// nextRetryAt <= now (FIFO among those); otherwise return the lane head
// if it has no nextRetryAt. Never blocks; returns nil if nothing is
// eligible right now. The popped job is removed from its lane — callers
// that fail to bind it must call Requeue to put it back at the lane head.
func (s *Store) Pop() *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, p := range lanePriorities {
		lane := s.lanes[p]
		if len(lane) == 0 {
			continue
		}

		// Prefer the first retry-ready item, scanning in FIFO order.
		for i, job := range lane {
			if job.NextRetryAt != nil && !job.NextRetryAt.After(now) {
				s.lanes[p] = removeAt(lane, i)
				return job
			}
		}

		// Otherwise, the lane head is eligible only if it has no pending
		// retry timestamp (a fresh job, never attempted).
		head := lane[0]
		if head.NextRetryAt == nil {
			s.lanes[p] = lane[1:]
			return head
		}
	}
	return nil
}

// Requeue puts a popped-but-unbound job back at the head of its lane,
// preserving FIFO ordering for the rest of the lane (edge case:
// "a job popped for dispatch but refused by the router... put back at the
// head"). This does not count as a retry attempt.
func (s *Store) Requeue(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lanes[job.Priority] = prepend(s.lanes[job.Priority], job)
}

// RequeueDetached returns a job to pending at the head of its lane after
// its assigned session was lost and no other extension could immediately
// take over. Unlike Requeue, this also resets status/assignment (via
// domain.Job.MarkDetached) under the same lock — used by the Failover
// Controller instead of mutating job fields directly, so GetStatus/Pop/
// GetJob never observe a record that is processing with no assignment.
func (s *Store) RequeueDetached(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.MarkDetached(s.now())
	s.lanes[job.Priority] = prepend(s.lanes[job.Priority], job)
	s.publish(domain.EventItemRetry, job, "")
}

// MarkProcessing moves a popped job into the in-flight set.
func (s *Store) MarkProcessing(job *domain.Job, extensionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.MarkProcessing(extensionID, s.now())
	s.inFlight[job.ID] = job
	s.publish(domain.EventItemProcessing, job, extensionID)
}

// Complete marks an in-flight job completed and removes it from in-flight.
func (s *Store) Complete(jobID uuid.UUID, result *domain.Result, processingTime time.Duration) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.inFlight[jobID]
	if !ok {
		return nil, false
	}
	delete(s.inFlight, jobID)
	job.MarkCompleted(result, processingTime, s.now())
	s.totalProcessed++
	s.processingTimeSum += processingTime
	s.processingTimeCount++
	s.publish(domain.EventItemCompleted, job, "")
	return job, true
}

// ReenqueueForRetry sets nextRetryAt and appends the job to the tail of
// its lane: retry re-insertion goes to the tail, not the head — a retried
// job waiting on a timer does not jump ahead of jobs that never failed.
func (s *Store) ReenqueueForRetry(job *domain.Job, delay time.Duration, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, job.ID)
	job.MarkRetrying(errMsg, s.now().Add(delay))
	s.lanes[job.Priority] = append(s.lanes[job.Priority], job)
	s.publish(domain.EventItemRetry, job, "")
}

// MoveToDLQ appends a job to the dead-letter queue.
func (s *Store) MoveToDLQ(job *domain.Job, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, job.ID)
	job.MarkDead(errMsg, s.now())
	s.dlq = append(s.dlq, job)
	s.totalFailed++
	s.publish(domain.EventItemDLQ, job, "")
}

// Cancel succeeds only for pending jobs still sitting in a lane:
// cancelling a processing job returns false — "cannot cancel".
func (s *Store) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p, lane := range s.lanes {
		for i, job := range lane {
			if job.ID == id {
				job.MarkCancelled(s.now())
				s.lanes[p] = removeAt(lane, i)
				s.publish(domain.EventItemCancelled, job, "")
				return true
			}
		}
	}
	return false
}

// GetJob looks up a job by id regardless of where it currently lives.
func (s *Store) GetJob(id uuid.UUID) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	return job, ok
}

// DLQEntries returns a snapshot copy of the current DLQ contents.
func (s *Store) DLQEntries() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Job, len(s.dlq))
	copy(out, s.dlq)
	return out
}

// RetryFromDLQ re-admits a dead-letter job into its original lane with
// attempts=0 and error cleared — lossy for auditing, but matches the
// chosen behavior (see DESIGN.md). Returns ErrNotFound if the id isn't in
// the DLQ.
func (s *Store) RetryFromDLQ(id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.dlq {
		if job.ID == id {
			s.dlq = removeAt(s.dlq, i)
			job.ResetForDLQRetry(s.now())
			s.lanes[job.Priority] = append(s.lanes[job.Priority], job)
			s.publish(domain.EventItemDLQRetry, job, "")
			return job, nil
		}
	}
	return nil, ErrNotFound
}

// PurgeDLQ removes every entry currently in the DLQ and returns how many
// were purged. Used by the admin HTTP surface; the retention cron uses
// PurgeDLQOlderThan instead.
func (s *Store) PurgeDLQ() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.dlq)
	s.dlq = nil
	return n
}

// PurgeDLQOlderThan removes DLQ entries whose CompletedAt predates cutoff,
// returning the purged count. Used by the retention cron (internal/retention).
func (s *Store) PurgeDLQOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.dlq[:0]
	purged := 0
	for _, job := range s.dlq {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, job)
	}
	s.dlq = kept
	return purged
}

// Status is the snapshot returned by GetStatus.
type Status struct {
	LaneDepths        map[domain.Priority]int `json:"lane_depths"`
	InFlightCount     int                     `json:"in_flight_count"`
	DLQSize           int                     `json:"dlq_size"`
	TotalEnqueued     int64                   `json:"total_enqueued"`
	TotalProcessed    int64                   `json:"total_processed"`
	TotalFailed       int64                   `json:"total_failed"`
	TotalInDLQ        int                     `json:"total_in_dlq"`
	AvgProcessingTime time.Duration           `json:"avg_processing_time"`
}

// GetStatus returns a consistent snapshot of the store.
func (s *Store) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := make(map[domain.Priority]int, len(lanePriorities))
	for _, p := range lanePriorities {
		depths[p] = len(s.lanes[p])
	}

	var avg time.Duration
	if s.processingTimeCount > 0 {
		avg = s.processingTimeSum / time.Duration(s.processingTimeCount)
	}

	return Status{
		LaneDepths:        depths,
		InFlightCount:     len(s.inFlight),
		DLQSize:           len(s.dlq),
		TotalEnqueued:     s.totalEnqueued,
		TotalProcessed:    s.totalProcessed,
		TotalFailed:       s.totalFailed,
		TotalInDLQ:        len(s.dlq),
		AvgProcessingTime: avg,
	}
}

// RetryDelaysMs exposes the configured backoff schedule, used by the
// Reaper to compute delays without duplicating configuration.
func (s *Store) RetryDelaysMs() []int {
	return s.retryDelaysMs
}

func (s *Store) publish(t domain.EventType, job *domain.Job, extensionID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.Event{
		Type:          t,
		Timestamp:     s.now(),
		JobID:         job.ID.String(),
		ExtensionID:   extensionID,
		CorrelationID: job.CorrelationID,
		Attrs:         map[string]any{"priority": string(job.Priority)},
	})
}

func removeAt(lane []*domain.Job, i int) []*domain.Job {
	out := make([]*domain.Job, 0, len(lane)-1)
	out = append(out, lane[:i]...)
	out = append(out, lane[i+1:]...)
	return out
}

func prepend(lane []*domain.Job, job *domain.Job) []*domain.Job {
	out := make([]*domain.Job, 0, len(lane)+1)
	out = append(out, job)
	out = append(out, lane...)
	return out
}
