package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
)

type fakeSender struct {
	frames []any
}

func (f *fakeSender) Send(frame any) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSender) Close(code int, reason string) error { return nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, *queue.Store, *registry.Registry) {
	t.Helper()
	bus := eventbus.New(nil)
	q := queue.New(queue.Config{Bus: bus, DefaultMaxAttempts: 3})
	r := registry.New(bus)
	rl := ratelimit.NewBucket(100, 100, nil)
	d := New(Config{
		Queue:             q,
		Registry:          r,
		RateLimiter:       rl,
		Bus:               bus,
		ProcessingTimeout: 50 * time.Millisecond,
	})
	return d, q, r
}

func TestDispatcher_BindsJobToConnectedWorker(t *testing.T) {
	d, q, r := newTestDispatcher(t)
	sender := &fakeSender{}
	r.Register(&domain.ExtensionSession{ID: "w1"}, sender)

	job, err := q.Enqueue(domain.Payload{URL: "https://ex/1.jpg"}, domain.PriorityNormal, 0, "corr-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go d.Run(ctx)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		if got, ok := q.GetJob(job.ID); ok && got.Status == domain.JobStatusProcessing {
			if got.AssignedExtensionID != "w1" {
				t.Fatalf("expected assignment to w1, got %s", got.AssignedExtensionID)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job was never dispatched")
}

func TestDispatcher_CompleteIsIdempotent(t *testing.T) {
	d, q, r := newTestDispatcher(t)
	sender := &fakeSender{}
	r.Register(&domain.ExtensionSession{ID: "w1"}, sender)

	job, _ := q.Enqueue(domain.Payload{URL: "https://ex/1.jpg"}, domain.PriorityNormal, 0, "corr-1")
	job2 := mustPop(t, q)
	if job2.ID != job.ID {
		t.Fatalf("unexpected pop: %v", job2.ID)
	}
	d.bind(job2, &domain.ExtensionSession{ID: "w1", Status: domain.SessionConnected}, "exact_match", 1.0, 0)

	d.Complete(job.ID, &domain.Result{ImageURL: "https://img"}, 10*time.Millisecond)
	d.Complete(job.ID, &domain.Result{ImageURL: "https://other"}, 10*time.Millisecond)

	got, _ := q.GetJob(job.ID)
	if got.Result.ImageURL != "https://img" {
		t.Fatalf("second complete should be ignored, got result %+v", got.Result)
	}
}

func TestDispatcher_FailRetriesThenDLQs(t *testing.T) {
	bus := eventbus.New(nil)
	q := queue.New(queue.Config{Bus: bus, DefaultMaxAttempts: 3, RetryDelaysMs: []int{0, 0, 0}})
	r := registry.New(bus)
	rl := ratelimit.NewBucket(100, 100, nil)
	d := New(Config{Queue: q, Registry: r, RateLimiter: rl, Bus: bus, ProcessingTimeout: 50 * time.Millisecond})

	sender := &fakeSender{}
	r.Register(&domain.ExtensionSession{ID: "w1"}, sender)

	job, _ := q.Enqueue(domain.Payload{URL: "https://ex/1.jpg"}, domain.PriorityNormal, 2, "corr-1")

	for i := 0; i < 2; i++ {
		popped := mustPop(t, q)
		d.bind(popped, &domain.ExtensionSession{ID: "w1", Status: domain.SessionConnected}, "exact_match", 1.0, 0)
		d.Fail(popped.ID, "transient")
	}

	got, ok := q.GetJob(job.ID)
	if !ok || got.Status != domain.JobStatusDead {
		t.Fatalf("expected job dead after exhausting attempts, got %+v ok=%v", got, ok)
	}
}

func mustPop(t *testing.T, q *queue.Store) *domain.Job {
	t.Helper()
	job := q.Pop()
	if job == nil {
		t.Fatal("expected a poppable job")
	}
	return job
}
