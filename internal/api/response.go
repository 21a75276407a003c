package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/dispatch-engine/internal/queue"
)

// ErrorCode is a stable, machine-readable API error code.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"
	ErrCodeQueueFull        ErrorCode = "QUEUE_FULL"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error      ErrorDetail `json:"error"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ErrorDetail carries the code and human message for one error.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse is the success envelope for a single item: JSON with an
// ISO-8601 timestamp and a correlationId threaded through related events.
type DataResponse struct {
	Data          any       `json:"data"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// ListResponse is the success envelope for a collection.
type ListResponse struct {
	Data      any       `json:"data"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON writes data as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success writes a 200 with data, optionally threading a correlation id.
func Success(w http.ResponseWriter, data any, correlationID string) {
	JSON(w, http.StatusOK, DataResponse{Data: data, Timestamp: time.Now(), CorrelationID: correlationID})
}

// Created writes a 201 with data.
func Created(w http.ResponseWriter, data any, correlationID string) {
	JSON(w, http.StatusCreated, DataResponse{Data: data, Timestamp: time.Now(), CorrelationID: correlationID})
}

// NoContent writes a 204 with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List writes a 200 with a collection and its total count.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total, Timestamp: time.Now()})
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}, Timestamp: time.Now()})
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState writes a 422 ("cannot cancel" etc.).
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// TooManyRequests writes a 429 (admission rate limit).
func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

// InternalError writes a 500 and logs the underlying cause.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// MethodNotAllowed writes a 405.
func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
}

// HandleEngineError maps a Queue Store error to its HTTP disposition:
// QueueFull -> 429 admission failure, NotFound -> 404, NotCancellable ->
// 422, InvalidPriority -> 400, anything else -> 500.
func HandleEngineError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, queue.ErrFull):
		TooManyRequests(w, "queue is at capacity")
	case errors.Is(err, queue.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, queue.ErrNotCancellable):
		InvalidState(w, "job is not cancellable in its current state")
	case errors.Is(err, queue.ErrInvalidPriority):
		BadRequest(w, "invalid priority")
	default:
		InternalError(w, logger, err)
	}
	return true
}
