package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/queue"
)

// EnqueueRequest is the body of POST /queue/enqueue.
type EnqueueRequest struct {
	URL         string            `json:"url" validate:"required,url"`
	Priority    string            `json:"priority,omitempty" validate:"omitempty,oneof=high normal low"`
	Headers     map[string]string `json:"headers,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	AddonID     string            `json:"addon_id,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty" validate:"omitempty,url"`
	AITool      string            `json:"ai_tool,omitempty"`
}

// ProcessResultRequest is the body of the out-of-band completion endpoints,
// semantically equivalent to the inbound wire frames.
type ProcessResultRequest struct {
	ImageURL       string         `json:"image_url,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	ProcessingTime int64          `json:"processing_time_ms,omitempty"`
}

// JobResponse mirrors domain.Job on the wire.
type JobResponse struct {
	ID                  uuid.UUID      `json:"id"`
	Priority            string         `json:"priority"`
	Status              string         `json:"status"`
	URL                 string         `json:"url"`
	Attempts            int            `json:"attempts"`
	MaxAttempts         int            `json:"max_attempts"`
	CreatedAt           time.Time      `json:"created_at"`
	LastAttemptAt       *time.Time     `json:"last_attempt_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	NextRetryAt         *time.Time     `json:"next_retry_at,omitempty"`
	Error               string         `json:"error,omitempty"`
	Result              *domain.Result `json:"result,omitempty"`
	AssignedExtensionID string         `json:"assigned_extension_id,omitempty"`
	CorrelationID       string         `json:"correlation_id"`
}

// JobFromDomain converts a domain.Job into its API representation.
func JobFromDomain(j *domain.Job) JobResponse {
	return JobResponse{
		ID:                  j.ID,
		Priority:            string(j.Priority),
		Status:              string(j.Status),
		URL:                 j.Payload.URL,
		Attempts:            j.Attempts,
		MaxAttempts:         j.MaxAttempts,
		CreatedAt:           j.CreatedAt,
		LastAttemptAt:       j.LastAttemptAt,
		CompletedAt:         j.CompletedAt,
		NextRetryAt:         j.NextRetryAt,
		Error:               j.Error,
		Result:              j.Result,
		AssignedExtensionID: j.AssignedExtensionID,
		CorrelationID:       j.CorrelationID,
	}
}

// QueueStatusResponse mirrors queue.Status on the wire, plus the rate
// limiter's currentRate: the handler assembles this response by combining
// both components' state.
type QueueStatusResponse struct {
	LaneDepths        map[string]int `json:"lane_depths"`
	InFlightCount     int            `json:"in_flight_count"`
	DLQSize           int            `json:"dlq_size"`
	TotalEnqueued     int64          `json:"total_enqueued"`
	TotalProcessed    int64          `json:"total_processed"`
	TotalFailed       int64          `json:"total_failed"`
	TotalInDLQ        int            `json:"total_in_dlq"`
	AvgProcessingMs   int64          `json:"avg_processing_time_ms"`
	CurrentRateTokens float64        `json:"current_rate_tokens"`
	RateCapacity      float64        `json:"rate_capacity"`
}

// QueueStatusFromDomain assembles the combined status response.
func QueueStatusFromDomain(s queue.Status, rl domain.RateLimiterState) QueueStatusResponse {
	depths := make(map[string]int, len(s.LaneDepths))
	for p, n := range s.LaneDepths {
		depths[string(p)] = n
	}
	return QueueStatusResponse{
		LaneDepths:        depths,
		InFlightCount:     s.InFlightCount,
		DLQSize:           s.DLQSize,
		TotalEnqueued:     s.TotalEnqueued,
		TotalProcessed:    s.TotalProcessed,
		TotalFailed:       s.TotalFailed,
		TotalInDLQ:        s.TotalInDLQ,
		AvgProcessingMs:   s.AvgProcessingTime.Milliseconds(),
		CurrentRateTokens: rl.Tokens,
		RateCapacity:      rl.Capacity,
	}
}

// GenerateImageRequest is the body of POST /api/images/generate — the
// image-generation surface, mapped onto the queue surface.
type GenerateImageRequest struct {
	Prompt        string         `json:"prompt" validate:"required"`
	Model         string         `json:"model,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	Tier          string         `json:"tier,omitempty" validate:"omitempty,oneof=high normal low"`
}

// GenerateImageResponse is returned by POST /api/images/generate.
type GenerateImageResponse struct {
	RequestID     string `json:"requestId"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlationId"`
}

// ImageStatusResponse is returned by GET /api/images/:requestId/status.
type ImageStatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress,omitempty"`
}
