package domain

import "time"

// RateLimiterState — наблюдаемое состояние token bucket.
// Поля существуют как отдельный тип, чтобы GetStatus() в Queue Store мог
// вернуть снимок без протягивания конкретной реализации ratelimit.Bucket.
type RateLimiterState struct {
	Tokens           float64   `json:"tokens"`
	Capacity         float64   `json:"capacity"`
	RefillRatePerSec float64   `json:"refill_rate_per_sec"`
	LastRefillAt     time.Time `json:"last_refill_at"`
}

// PendingRequest — бухгалтерия роутера: job в процессе обработки воркером.
// Существует только пока job.Status == processing.
type PendingRequest struct {
	JobID       string    `json:"job_id"`
	ExtensionID string    `json:"extension_id"`
	AssignedAt  time.Time `json:"assigned_at"`
	RetryCount  int       `json:"retry_count"`
}
