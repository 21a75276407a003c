package api

import (
	"net/http"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// SessionResponse is the admin-facing view of a connected extension.
type SessionResponse struct {
	ID                string   `json:"id"`
	Status            string   `json:"status"`
	Capabilities      []string `json:"capabilities,omitempty"`
	InFlightCount     int      `json:"in_flight_count"`
	AvgResponseTimeMs float64  `json:"avg_response_time_ms"`
	ConnectedAt       string   `json:"connected_at"`
}

func sessionFromDomain(s domain.ExtensionSession) SessionResponse {
	caps := make([]string, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		caps = append(caps, c.Name+"/"+c.Version)
	}
	return SessionResponse{
		ID:                s.ID,
		Status:            string(s.Status),
		Capabilities:      caps,
		InFlightCount:     s.InFlightCount,
		AvgResponseTimeMs: s.AvgResponseTimeMs,
		ConnectedAt:       s.ConnectedAt.Format(time.RFC3339),
	}
}

// ListSessions handles GET /sessions: every registered extension session,
// used by dispatchctl's "sessions list".
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	resp := make([]SessionResponse, 0, len(snapshot))
	for _, s := range snapshot {
		resp = append(resp, sessionFromDomain(s))
	}
	List(w, resp, len(resp))
}

// Drain handles POST /admin/drain: stops the dispatcher from binding new
// work, leaving in-flight jobs to resolve normally (graceful
// shutdown option (a)). Used by dispatchctl's "drain" before a redeploy.
func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	h.dispatcher.Drain()
	NoContent(w)
}
