package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// tierPriority maps a request's tier hint onto the queue's lane priority.
func tierPriority(tier string) domain.Priority {
	switch domain.Priority(tier) {
	case domain.PriorityHigh, domain.PriorityLow:
		return domain.Priority(tier)
	default:
		return domain.PriorityNormal
	}
}

// GenerateImage handles POST /api/images/generate.
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req GenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	correlationID := uuid.NewString()
	payload := domain.Payload{
		URL:      req.Prompt,
		AITool:   req.Model,
		Metadata: req.Parameters,
	}

	job, err := h.queue.Enqueue(payload, tierPriority(req.Tier), 0, correlationID)
	if HandleEngineError(w, h.logger, err, "") {
		return
	}

	Created(w, GenerateImageResponse{
		RequestID:     job.ID.String(),
		Status:        "accepted",
		CorrelationID: job.CorrelationID,
	}, job.CorrelationID)
}

// ImageStatus handles GET /api/images/:requestId/status.
func (h *Handler) ImageStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		BadRequest(w, "invalid requestId")
		return
	}
	job, ok := h.queue.GetJob(id)
	if !ok {
		NotFound(w, "request not found")
		return
	}
	Success(w, ImageStatusResponse{Status: string(job.Status)}, job.CorrelationID)
}

// GetImage handles GET /api/images/:requestId, returning the final
// artifact record once the job has completed.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		BadRequest(w, "invalid requestId")
		return
	}
	job, ok := h.queue.GetJob(id)
	if !ok {
		NotFound(w, "request not found")
		return
	}
	if job.Status != domain.JobStatusCompleted {
		InvalidState(w, "request has not completed")
		return
	}
	Success(w, job.Result, job.CorrelationID)
}
