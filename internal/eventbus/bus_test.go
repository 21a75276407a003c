package eventbus

import (
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

func TestBus_PublishSubscribe_FiltersByTopic(t *testing.T) {
	bus := New(nil)
	added := bus.Subscribe(domain.EventItemAdded)
	dlq := bus.Subscribe(domain.EventItemDLQ)

	bus.Publish(domain.Event{Type: domain.EventItemAdded, JobID: "a"})

	select {
	case evt := <-added:
		if evt.JobID != "a" {
			t.Fatalf("unexpected job id %q", evt.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on item.added subscriber")
	}

	select {
	case evt := <-dlq:
		t.Fatalf("unexpected event on dlq subscriber: %+v", evt)
	default:
	}
}

func TestBus_Subscribe_AllTopics(t *testing.T) {
	bus := New(nil)
	all := bus.Subscribe()

	bus.Publish(domain.Event{Type: domain.EventExtensionConnected})

	select {
	case evt := <-all:
		if evt.Type != domain.EventExtensionConnected {
			t.Fatalf("unexpected type %v", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on wildcard subscriber")
	}
}

func TestBus_Publish_NonBlockingWhenBufferFull(t *testing.T) {
	bus := New(nil)
	_ = bus.Subscribe(domain.EventItemAdded) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultSubscriberBuffer+10; i++ {
			bus.Publish(domain.Event{Type: domain.EventItemAdded})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}
