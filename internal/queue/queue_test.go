package queue

import (
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

func newTestStore() *Store {
	return New(Config{DefaultMaxAttempts: 3})
}

func TestStore_PriorityDominance(t *testing.T) {
	s := newTestStore()
	s.Enqueue(domain.Payload{URL: "a"}, domain.PriorityLow, 0, "")
	s.Enqueue(domain.Payload{URL: "b"}, domain.PriorityHigh, 0, "")
	s.Enqueue(domain.Payload{URL: "c"}, domain.PriorityNormal, 0, "")

	first := s.Pop()
	second := s.Pop()
	third := s.Pop()

	if first.Payload.URL != "b" || second.Payload.URL != "c" || third.Payload.URL != "a" {
		t.Fatalf("expected order b,c,a; got %s,%s,%s", first.Payload.URL, second.Payload.URL, third.Payload.URL)
	}
}

func TestStore_Enqueue_CapacityReached(t *testing.T) {
	s := New(Config{MaxQueueSize: 3, DefaultMaxAttempts: 3})

	for i := 0; i < 3; i++ {
		if _, err := s.Enqueue(domain.Payload{URL: "x"}, domain.PriorityNormal, 0, ""); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if _, err := s.Enqueue(domain.Payload{URL: "x"}, domain.PriorityNormal, 0, ""); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestStore_Cancel_OnlyPending(t *testing.T) {
	s := newTestStore()
	job, _ := s.Enqueue(domain.Payload{URL: "a"}, domain.PriorityNormal, 0, "")

	if !s.Cancel(job.ID) {
		t.Fatal("expected cancel of pending job to succeed")
	}

	job2, _ := s.Enqueue(domain.Payload{URL: "b"}, domain.PriorityNormal, 0, "")
	popped := s.Pop()
	if popped == nil || popped.ID != job2.ID {
		t.Fatal("expected to pop job2")
	}
	s.MarkProcessing(popped, "ext-1")

	if s.Cancel(job2.ID) {
		t.Fatal("expected cancel of processing job to fail")
	}
}

func TestStore_Requeue_GoesToHead(t *testing.T) {
	s := newTestStore()
	s.Enqueue(domain.Payload{URL: "first"}, domain.PriorityNormal, 0, "")
	s.Enqueue(domain.Payload{URL: "second"}, domain.PriorityNormal, 0, "")

	popped := s.Pop()
	if popped.Payload.URL != "first" {
		t.Fatalf("expected to pop 'first', got %s", popped.Payload.URL)
	}
	s.Requeue(popped)

	repopped := s.Pop()
	if repopped.Payload.URL != "first" {
		t.Fatalf("expected requeue to preserve head position, got %s", repopped.Payload.URL)
	}
}

func TestStore_RequeueDetached_ResetsStatusAndAssignment(t *testing.T) {
	s := newTestStore()
	job, _ := s.Enqueue(domain.Payload{URL: "a"}, domain.PriorityNormal, 0, "")

	popped := s.Pop()
	s.MarkProcessing(popped, "ext-1")

	s.RequeueDetached(popped)

	got, ok := s.GetJob(job.ID)
	if !ok {
		t.Fatal("expected job to still be known to the store")
	}
	if got.Status != domain.JobStatusPending {
		t.Fatalf("expected status pending, got %s", got.Status)
	}
	if got.AssignedExtensionID != "" {
		t.Fatalf("expected assignment cleared, got %s", got.AssignedExtensionID)
	}
	if got.NextRetryAt == nil || got.NextRetryAt.After(time.Now()) {
		t.Fatal("expected nextRetryAt set to the detach time, job should be immediately eligible")
	}

	repopped := s.Pop()
	if repopped == nil || repopped.ID != job.ID {
		t.Fatal("expected the detached job to be poppable again")
	}
}

func TestStore_RetryThenDLQ(t *testing.T) {
	s := New(Config{DefaultMaxAttempts: 2})
	job, _ := s.Enqueue(domain.Payload{URL: "a"}, domain.PriorityNormal, 0, "")

	popped := s.Pop()
	s.MarkProcessing(popped, "ext-1")
	s.ReenqueueForRetry(popped, time.Millisecond, "transient")

	if popped.Status != domain.JobStatusPending {
		t.Fatalf("expected pending after retry, got %s", popped.Status)
	}

	time.Sleep(2 * time.Millisecond)
	repopped := s.Pop()
	if repopped == nil || repopped.ID != job.ID {
		t.Fatal("expected retry-ready job to be poppable again")
	}
	s.MarkProcessing(repopped, "ext-1")
	s.MoveToDLQ(repopped, "terminal")

	if repopped.Status != domain.JobStatusDead {
		t.Fatalf("expected dead status, got %s", repopped.Status)
	}
	status := s.GetStatus()
	if status.DLQSize != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", status.DLQSize)
	}
}

func TestStore_RetryFromDLQ_ResetsAttempts(t *testing.T) {
	s := New(Config{DefaultMaxAttempts: 1})
	job, _ := s.Enqueue(domain.Payload{URL: "a"}, domain.PriorityNormal, 0, "")
	popped := s.Pop()
	s.MarkProcessing(popped, "ext-1")
	s.MoveToDLQ(popped, "bad")

	revived, err := s.RetryFromDLQ(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revived.Attempts != 0 || revived.Error != "" || revived.Status != domain.JobStatusPending {
		t.Fatalf("expected reset job, got %+v", revived)
	}
}

func TestBackoffDelay_StrictLengthCheck(t *testing.T) {
	delays := []int{1000, 5000, 15000}
	if got := BackoffDelay(delays, 1); got != time.Second {
		t.Fatalf("attempt 1: expected 1s, got %v", got)
	}
	if got := BackoffDelay(delays, 3); got != 15*time.Second {
		t.Fatalf("attempt 3: expected 15s, got %v", got)
	}
	if got := BackoffDelay(delays, 4); got != 30*time.Second {
		t.Fatalf("attempt 4 (overflow): expected 30s fallback, got %v", got)
	}
}
