// Package supervise wires the engine's background tasks (Dispatcher tick
// loop, Heartbeat Supervisor, metrics subscriber, event forwarder, DLQ
// retention sweep) into a thejerf/suture/v4 service tree, so a panic or
// error in one task restarts just that task instead of taking the whole
// process down. Grounded on tomtom215-cartographus's
// internal/supervisor.SupervisorTree, trimmed from a three-layer
// data/messaging/api split to a single flat layer — the engine is one
// process with no comparable layering to isolate.
package supervise

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config tunes the root supervisor's failure-handling policy.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig matches suture's own documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the engine's root supervisor.
type Tree struct {
	root *suture.Supervisor
}

// New builds a Tree logging service lifecycle events through logger via
// sutureslog.
func New(logger *slog.Logger, cfg Config) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5.0
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30.0
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}

	root := suture.New("dispatch-engine", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})

	return &Tree{root: root}
}

// Add registers svc with the tree, returning a token usable with Remove.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Remove stops and detaches the service identified by token.
func (t *Tree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// Serve runs every registered service until ctx is cancelled, restarting
// any that exit with an error per the configured backoff policy.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
