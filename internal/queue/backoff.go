package queue

import "time"

// defaultBackoffMs is the fallback delay used once attempt
// exceeds the length of the configured schedule.
const defaultBackoffMs = 30_000

// DefaultRetryDelaysMs is the default backoff schedule: {1s, 5s, 15s}.
var DefaultRetryDelaysMs = []int{1000, 5000, 15000}

// BackoffDelay returns the delay before retry attempt k (1-indexed), per
// and the Open Question resolution in DESIGN.md: a strict length
// check against delaysMs, falling back to 30s only when k exceeds the
// schedule's length (never short-circuiting on a zero entry).
func BackoffDelay(delaysMs []int, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt <= len(delaysMs) {
		return time.Duration(delaysMs[attempt-1]) * time.Millisecond
	}
	return defaultBackoffMs * time.Millisecond
}
