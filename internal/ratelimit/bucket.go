// Package ratelimit implements the engine's token-bucket dispatch gate.
// It is hand-rolled on top of a small Clock interface rather than
// golang.org/x/time/rate: tokens/capacity/refill rate need to be directly
// inspectable for GetStatus() snapshots and testable against an injected
// clock, neither of which x/time/rate exposes (see DESIGN.md for the full
// justification).
package ratelimit

import (
	"sync"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// Bucket is a token bucket refilled lazily on each call from the wall-clock
// delta since the last refill. Tokens are bounded to [0, capacity].
type Bucket struct {
	mu sync.Mutex

	capacity float64
	ratePerS float64
	tokens   float64
	lastAt   time.Time

	clock Clock
}

// NewBucket creates a bucket starting full, refilling at ratePerSec tokens
// per second up to capacity tokens.
func NewBucket(capacity, ratePerSec float64, clock Clock) *Bucket {
	if clock == nil {
		clock = RealClock
	}
	if capacity <= 0 {
		capacity = 1
	}
	if ratePerSec <= 0 {
		ratePerSec = capacity
	}
	return &Bucket{
		capacity: capacity,
		ratePerS: ratePerSec,
		tokens:   capacity,
		lastAt:   clock.Now(),
		clock:    clock,
	}
}

// TryConsume attempts to take one token. Returns false if none is available
// right now; callers are expected to back off briefly (~100ms) and retry.
func (b *Bucket) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *Bucket) refillLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastAt).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.ratePerS
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastAt = now
}

// Snapshot returns the current observable state for GetStatus().
func (b *Bucket) Snapshot() domain.RateLimiterState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return domain.RateLimiterState{
		Tokens:           b.tokens,
		Capacity:         b.capacity,
		RefillRatePerSec: b.ratePerS,
		LastRefillAt:     b.lastAt,
	}
}

// Capacity reports the bucket's configured capacity (== configured rate/sec).
func (b *Bucket) Capacity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}
