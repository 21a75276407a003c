package registry

import (
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
)

type fakeSender struct {
	sent   []any
	closed bool
	err    error
}

func (f *fakeSender) Send(frame any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSender) Close(code int, reason string) error {
	f.closed = true
	return nil
}

func TestRegistry_Register_DuplicateIDRejected(t *testing.T) {
	r := New(nil)
	s := &domain.ExtensionSession{ID: "ext-1"}
	if err := r.Register(s, &fakeSender{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&domain.ExtensionSession{ID: "ext-1"}, &fakeSender{}); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRegistry_MarkActivity_RecoversUnhealthy(t *testing.T) {
	r := New(nil)
	s := &domain.ExtensionSession{ID: "ext-1"}
	r.Register(s, &fakeSender{})
	r.MarkUnhealthy("ext-1")

	got, _ := r.Get("ext-1")
	if got.Status != domain.SessionUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got.Status)
	}

	if err := r.MarkActivity("ext-1"); err != nil {
		t.Fatalf("mark activity: %v", err)
	}
	got, _ = r.Get("ext-1")
	if got.Status != domain.SessionConnected {
		t.Fatalf("expected recovery to connected, got %s", got.Status)
	}
}

func TestRegistry_Rekey_CollapsesTempIntoReal(t *testing.T) {
	r := New(nil)
	if err := r.RegisterUnauthenticated("temp-123", &fakeSender{}); err != nil {
		t.Fatalf("register unauthenticated: %v", err)
	}
	if got, _ := r.Get("temp-123"); got.Status != domain.SessionUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", got.Status)
	}

	caps := []domain.Capability{{Name: "midjourney", Version: "1.0"}}
	if err := r.Rekey("temp-123", "ext-real", caps); err != nil {
		t.Fatalf("rekey: %v", err)
	}
	if _, ok := r.Get("temp-123"); ok {
		t.Fatal("expected temp id to be gone")
	}
	got, ok := r.Get("ext-real")
	if !ok {
		t.Fatal("expected real id to be present")
	}
	if got.Status != domain.SessionConnected {
		t.Fatalf("expected connected after rekey, got %s", got.Status)
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0].Name != "midjourney" {
		t.Fatalf("expected capabilities carried over, got %+v", got.Capabilities)
	}
}

func TestRegistry_Rekey_UnknownTempIDFails(t *testing.T) {
	r := New(nil)
	if err := r.Rekey("no-such-temp", "ext-real", nil); err != ErrUnknownSession {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestRegistry_Remove_UnauthenticatedDoesNotPublishDisconnected(t *testing.T) {
	bus := eventbus.New(nil)
	events := bus.Subscribe(domain.EventExtensionConnected, domain.EventExtensionDisconnected)
	r := New(bus)

	if err := r.RegisterUnauthenticated("temp-123", &fakeSender{}); err != nil {
		t.Fatalf("register unauthenticated: %v", err)
	}
	r.Remove("temp-123")

	select {
	case evt := <-events:
		t.Fatalf("expected no event for a session that never authenticated, got %s", evt.Type)
	default:
	}
}

func TestRegistry_Connected_FiltersByStatus(t *testing.T) {
	r := New(nil)
	r.Register(&domain.ExtensionSession{ID: "a"}, &fakeSender{})
	r.Register(&domain.ExtensionSession{ID: "b"}, &fakeSender{})
	r.MarkUnhealthy("b")

	connected := r.Connected()
	if len(connected) != 1 || connected[0].ID != "a" {
		t.Fatalf("expected only 'a' connected, got %+v", connected)
	}
}

func TestRegistry_PublishesConnectedDisconnectedHeartbeat(t *testing.T) {
	bus := eventbus.New(nil)
	events := bus.Subscribe(domain.EventExtensionConnected, domain.EventExtensionDisconnected, domain.EventExtensionHeartbeat)
	r := New(bus)

	r.Register(&domain.ExtensionSession{ID: "ext-1"}, &fakeSender{})
	if err := r.RecordHeartbeat("ext-1"); err != nil {
		t.Fatalf("record heartbeat: %v", err)
	}
	r.Remove("ext-1")

	want := []domain.EventType{
		domain.EventExtensionConnected,
		domain.EventExtensionHeartbeat,
		domain.EventExtensionDisconnected,
	}
	for _, w := range want {
		select {
		case evt := <-events:
			if evt.Type != w {
				t.Fatalf("expected %s, got %s", w, evt.Type)
			}
			if evt.ExtensionID != "ext-1" {
				t.Fatalf("expected extension_id ext-1, got %s", evt.ExtensionID)
			}
		default:
			t.Fatalf("expected event %s, none published", w)
		}
	}
}

func TestSupervisor_DisconnectsOnMissedProbes(t *testing.T) {
	r := New(nil)
	sender := &fakeSender{}
	r.Register(&domain.ExtensionSession{ID: "ext-1"}, sender)
	// force staleness
	r.mu.Lock()
	r.entries["ext-1"].session.LastActivityAt = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	disc := &recordingDisconnecter{}
	sup := NewSupervisor(r, disc, nil)
	sup.MissedProbeLimit = 1

	sup.sweep()

	if len(disc.calls) != 1 {
		t.Fatalf("expected exactly one disconnect call, got %d", len(disc.calls))
	}
}

type recordingDisconnecter struct {
	calls []string
}

func (d *recordingDisconnecter) Disconnect(id, reason string) {
	d.calls = append(d.calls, id)
}
