package router

import (
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

func TestCapabilityScore_ExactCompatibleIncompatible(t *testing.T) {
	if got := capabilityScore("1.4", "1.4"); got != scoreExactVersion {
		t.Fatalf("exact match: got %v", got)
	}
	if got := capabilityScore("1.4", "1.6"); got != scoreCompatibleVersion {
		t.Fatalf("compatible match: got %v", got)
	}
	if got := capabilityScore("1.4", "1.2"); got != scoreIncompatible {
		t.Fatalf("older minor should be incompatible: got %v", got)
	}
	if got := capabilityScore("1.4", "2.0"); got != scoreIncompatible {
		t.Fatalf("different major should be incompatible: got %v", got)
	}
}

func newSession(id string, inFlight int, connectedAt time.Time) *domain.ExtensionSession {
	return &domain.ExtensionSession{
		ID:            id,
		Status:        domain.SessionConnected,
		InFlightCount: inFlight,
		ConnectedAt:   connectedAt,
	}
}

func TestSelect_ExactMatchPinWins(t *testing.T) {
	now := time.Now()
	a := newSession("a", 0, now)
	b := newSession("b", 0, now)
	job := &domain.Job{Payload: domain.Payload{TargetExtensionID: "b"}}

	session, reason, confidence, ok := Select([]*domain.ExtensionSession{a, b}, job, now)
	if !ok || session.ID != "b" {
		t.Fatalf("expected pinned session b, got %+v ok=%v", session, ok)
	}
	if reason != ReasonExactMatch || confidence != ConfidenceExactMatch {
		t.Fatalf("unexpected reason/confidence: %s/%v", reason, confidence)
	}
}

func TestSelect_ExactMatchPinNotConnectedFails(t *testing.T) {
	now := time.Now()
	a := newSession("a", 0, now)
	job := &domain.Job{Payload: domain.Payload{TargetExtensionID: "missing"}}

	_, _, _, ok := Select([]*domain.ExtensionSession{a}, job, now)
	if ok {
		t.Fatal("expected no match for missing pinned extension")
	}
}

func TestSelect_TieBreaksOnLoadThenConnectedAt(t *testing.T) {
	now := time.Now()
	// Both are connected longer than ObservationWindow, so their scores tie.
	older := newSession("older", 0, now.Add(-48*time.Hour))
	newer := newSession("newer", 0, now.Add(-25*time.Hour))
	job := &domain.Job{}

	session, _, _, ok := Select([]*domain.ExtensionSession{newer, older}, job, now)
	if !ok || session.ID != "older" {
		t.Fatalf("expected tie-break to prefer earlier connectedAt, got %+v", session)
	}
}

func TestSelect_LowerInFlightWins(t *testing.T) {
	now := time.Now()
	busy := newSession("busy", 10, now)
	idle := newSession("idle", 0, now)
	job := &domain.Job{}

	session, _, _, ok := Select([]*domain.ExtensionSession{busy, idle}, job, now)
	if !ok || session.ID != "idle" {
		t.Fatalf("expected idle session to win, got %+v", session)
	}
}

func TestSelect_SkipsNonDispatchEligibleSessions(t *testing.T) {
	now := time.Now()
	unhealthy := newSession("unhealthy", 0, now)
	unhealthy.Status = domain.SessionUnhealthy
	job := &domain.Job{}

	_, _, _, ok := Select([]*domain.ExtensionSession{unhealthy}, job, now)
	if ok {
		t.Fatal("expected no eligible session when only unhealthy session exists")
	}
}
