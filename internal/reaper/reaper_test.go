package reaper

import (
	"testing"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
	"github.com/shaiso/dispatch-engine/internal/wire"
)

type fakeSender struct{}

func (fakeSender) Send(frame any) error              { return nil }
func (fakeSender) Close(code int, reason string) error { return nil }

func newTestBridge(t *testing.T) (*Bridge, *registry.Registry) {
	t.Helper()
	bus := eventbus.New(nil)
	q := queue.New(queue.Config{DefaultMaxAttempts: 3, Bus: bus})
	reg := registry.New(bus)
	bucket := ratelimit.NewBucket(100, 100, ratelimit.RealClock)
	disp := dispatcher.New(dispatcher.Config{Queue: q, Registry: reg, RateLimiter: bucket, Bus: bus})
	return New(reg, disp, nil, nil), reg
}

func TestBridge_OnConnectThenAuthenticate_CollapsesViaRekey(t *testing.T) {
	b, reg := newTestBridge(t)

	tempID := "temp-abc"
	b.OnConnect(tempID, fakeSender{})

	got, ok := reg.Get(tempID)
	if !ok || got.Status != domain.SessionUnauthenticated {
		t.Fatalf("expected unauthenticated session under temp id, got %+v ok=%v", got, ok)
	}

	err := b.OnAuthenticate(tempID, fakeSender{}, wire.AuthenticateData{
		ExtensionID:  "ext-1",
		Capabilities: []wire.CapabilityDTO{{Name: "midjourney", Version: "1.0"}},
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if _, ok := reg.Get(tempID); ok {
		t.Fatal("expected temp id to be gone after rekey")
	}
	session, ok := reg.Get("ext-1")
	if !ok {
		t.Fatal("expected session registered under its real extensionId")
	}
	if session.Status != domain.SessionConnected {
		t.Fatalf("expected connected, got %s", session.Status)
	}
	if _, found := session.HasCapability("midjourney"); !found {
		t.Fatal("expected capability carried over through rekey")
	}
}

func TestBridge_OnAuthenticate_RejectsDuplicateExtensionID(t *testing.T) {
	b, reg := newTestBridge(t)

	if err := reg.Register(&domain.ExtensionSession{ID: "ext-1"}, fakeSender{}); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	b.OnConnect("temp-xyz", fakeSender{})
	err := b.OnAuthenticate("temp-xyz", fakeSender{}, wire.AuthenticateData{ExtensionID: "ext-1"})
	if err == nil {
		t.Fatal("expected error authenticating into an already-connected extensionId")
	}
}
