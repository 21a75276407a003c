package router

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingRequest is the router's bookkeeping entry for one in-flight
// assignment: jobId -> extensionId,
// assignedAt, timeoutHandle, retryCount. Entries exist only while a job
// is processing.
type PendingRequest struct {
	JobID       uuid.UUID
	ExtensionID string
	AssignedAt  time.Time
	RetryCount  int

	// cancelTimeout stops the per-job timeout timer; called whenever the
	// request resolves (complete/fail/rebind) before the timer fires.
	cancelTimeout func()
}

// PendingMap tracks every job currently bound to an extension, guarding
// concurrent access since both the dispatcher's bind step and the
// reaper's resolve step touch it.
type PendingMap struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*PendingRequest
}

// NewPendingMap creates an empty PendingMap.
func NewPendingMap() *PendingMap {
	return &PendingMap{entries: make(map[uuid.UUID]*PendingRequest)}
}

// Add registers a new pending assignment, replacing any prior timeout
// canceller for the same job (rebind case).
func (p *PendingMap) Add(jobID uuid.UUID, extensionID string, assignedAt time.Time, retryCount int, cancelTimeout func()) *PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.entries[jobID]; ok && existing.cancelTimeout != nil {
		existing.cancelTimeout()
	}
	req := &PendingRequest{
		JobID:         jobID,
		ExtensionID:   extensionID,
		AssignedAt:    assignedAt,
		RetryCount:    retryCount,
		cancelTimeout: cancelTimeout,
	}
	p.entries[jobID] = req
	return req
}

// Get returns the pending request for jobID, if any.
func (p *PendingMap) Get(jobID uuid.UUID) (*PendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.entries[jobID]
	return req, ok
}

// Resolve removes jobID's pending entry and cancels its timeout timer,
// returning the removed entry (nil if it was not present — a late or
// duplicate resolution, handled as a no-op by the caller).
func (p *PendingMap) Resolve(jobID uuid.UUID) *PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.entries[jobID]
	if !ok {
		return nil
	}
	delete(p.entries, jobID)
	if req.cancelTimeout != nil {
		req.cancelTimeout()
	}
	return req
}

// InFlightFor returns every pending job id currently bound to extensionID,
// used by the Failover Controller to enumerate a dead session's work.
func (p *PendingMap) InFlightFor(extensionID string) []*PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*PendingRequest
	for _, req := range p.entries {
		if req.ExtensionID == extensionID {
			out = append(out, req)
		}
	}
	return out
}

// Len returns the number of currently pending (in-flight) assignments.
func (p *PendingMap) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
