package registry

import (
	"context"
	"log/slog"
	"time"
)

// Default heartbeat configuration.
const (
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultUnhealthyThreshold = 60 * time.Second
	DefaultMissedProbeLimit   = 3
)

// Disconnecter is notified when a session must be torn down (socket
// already closed, or the ping itself errored). It is implemented by the
// engine's Failover Controller wiring, not by Registry, so that removal
// and rebind stay a single atomic step owned by one component.
type Disconnecter interface {
	Disconnect(sessionID string, reason string)
}

// Supervisor runs the periodic liveness check described in :
// every Interval it inspects LastActivityAt; sessions silent past
// UnhealthyAfter get a ping (and are marked unhealthy); sessions that fail
// the ping, or have missed MissedProbeLimit consecutive probes, are
// disconnected.
type Supervisor struct {
	registry *Registry
	disc     Disconnecter
	logger   *slog.Logger

	Interval      time.Duration
	UnhealthyAfter time.Duration
	MissedProbeLimit int

	missed map[string]int
}

// NewSupervisor wires a Supervisor over registry, notifying disc on removal.
func NewSupervisor(registry *Registry, disc Disconnecter, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		registry:         registry,
		disc:             disc,
		logger:           logger,
		Interval:         DefaultHeartbeatInterval,
		UnhealthyAfter:   DefaultUnhealthyThreshold,
		MissedProbeLimit: DefaultMissedProbeLimit,
		missed:           make(map[string]int),
	}
}

// Run blocks, ticking every s.Interval until ctx is cancelled. Intended to
// run as one of the suture-supervised service-tree leaves.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Supervisor) sweep() {
	now := time.Now()
	for _, session := range s.registry.Snapshot() {
		silentFor := now.Sub(session.LastActivityAt)
		if silentFor <= s.UnhealthyAfter {
			delete(s.missed, session.ID)
			continue
		}

		s.registry.MarkUnhealthy(session.ID)

		if err := s.registry.Send(session.ID, pingFrame{Type: "ping"}); err != nil {
			s.logger.Warn("heartbeat: ping failed, disconnecting session", "extension_id", session.ID, "error", err)
			s.disconnect(session.ID, "ping failed")
			continue
		}

		s.missed[session.ID]++
		if s.missed[session.ID] >= s.MissedProbeLimit {
			s.logger.Warn("heartbeat: missed probe limit reached", "extension_id", session.ID, "missed", s.missed[session.ID])
			s.disconnect(session.ID, "missed heartbeat probes")
		}
	}
}

func (s *Supervisor) disconnect(id, reason string) {
	delete(s.missed, id)
	s.disc.Disconnect(id, reason)
}

// pingFrame is the low-level liveness frame. Defined
// here (rather than imported from internal/wire) to avoid a registry<->wire
// import cycle; internal/wire.Client.Send marshals it like any other frame,
// producing {"type":"ping"}.
type pingFrame struct {
	Type string `json:"type"`
}
