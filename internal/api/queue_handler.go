package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// Enqueue handles POST /queue/enqueue.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	priority := domain.PriorityNormal
	if req.Priority != "" {
		priority = domain.Priority(req.Priority)
	}

	payload := domain.Payload{
		URL:         req.URL,
		Headers:     req.Headers,
		Metadata:    req.Metadata,
		AddonID:     req.AddonID,
		CallbackURL: req.CallbackURL,
		AITool:      req.AITool,
	}

	correlationID := uuid.NewString()
	job, err := h.queue.Enqueue(payload, priority, 0, correlationID)
	if HandleEngineError(w, h.logger, err, "") {
		return
	}

	Created(w, JobFromDomain(job), job.CorrelationID)
}

// QueueStatus handles GET /queue/status.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status := h.queue.GetStatus()
	rl := h.rateLimiter.Snapshot()
	Success(w, QueueStatusFromDomain(status, rl), "")
}

// GetQueueItem handles GET /queue/item/:id.
func (h *Handler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	job, ok := h.queue.GetJob(id)
	if !ok {
		NotFound(w, "job not found")
		return
	}
	Success(w, JobFromDomain(job), job.CorrelationID)
}

// CancelQueueItem handles DELETE /queue/item/:id.
func (h *Handler) CancelQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	if !h.queue.Cancel(id) {
		InvalidState(w, "job is not cancellable in its current state")
		return
	}
	NoContent(w)
}

// ListDLQ handles GET /queue/dlq.
func (h *Handler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	entries := h.queue.DLQEntries()
	out := make([]JobResponse, len(entries))
	for i, j := range entries {
		out[i] = JobFromDomain(j)
	}
	List(w, out, len(out))
}

// RetryDLQItem handles POST /queue/dlq/:id/retry.
func (h *Handler) RetryDLQItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	job, err := h.queue.RetryFromDLQ(id)
	if HandleEngineError(w, h.logger, err, "job not found in dead-letter queue") {
		return
	}
	Success(w, JobFromDomain(job), job.CorrelationID)
}

// PurgeDLQ handles DELETE /queue/dlq.
func (h *Handler) PurgeDLQ(w http.ResponseWriter, r *http.Request) {
	n := h.queue.PurgeDLQ()
	Success(w, map[string]int{"purged": n}, "")
}

// CompleteProcess handles POST /queue/process/:id/complete — an
// out-of-band equivalent to the inbound "image_generated" wire frame,
// used by processors that receive work by other means.
func (h *Handler) CompleteProcess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	var req ProcessResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	job, ok := h.queue.GetJob(id)
	if !ok {
		NotFound(w, "job not found")
		return
	}

	processingTime := durationFromMillis(req.ProcessingTime)
	h.dispatcher.Complete(id, &domain.Result{ImageURL: req.ImageURL, Metadata: req.Metadata}, processingTime)
	Success(w, JobFromDomain(job), job.CorrelationID)
}

// FailProcess handles POST /queue/process/:id/fail — an out-of-band
// equivalent to the inbound "image_generation_failed" wire frame.
func (h *Handler) FailProcess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	var req ProcessResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	job, ok := h.queue.GetJob(id)
	if !ok {
		NotFound(w, "job not found")
		return
	}

	h.dispatcher.Fail(id, req.Error)
	Success(w, JobFromDomain(job), job.CorrelationID)
}
