package retention

import (
	"testing"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/queue"
)

func TestPurger_Tick_PurgesEntriesOlderThanMaxAge(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	q := queue.New(queue.Config{DefaultMaxAttempts: 1, Now: func() time.Time { return past }})

	job, err := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 1, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	popped := q.Pop()
	if popped == nil || popped.ID != job.ID {
		t.Fatal("expected to pop the only job")
	}
	q.MarkProcessing(popped, "ext-1")
	q.MoveToDLQ(popped, "boom")

	if len(q.DLQEntries()) != 1 {
		t.Fatal("expected one DLQ entry before purging")
	}

	purger, err := New(q, "0 * * * *", time.Hour, nil)
	if err != nil {
		t.Fatalf("new purger: %v", err)
	}
	purger.Tick()

	if len(q.DLQEntries()) != 0 {
		t.Fatal("expected the aged DLQ entry to be purged")
	}
}

func TestPurger_Tick_KeepsEntriesYoungerThanMaxAge(t *testing.T) {
	q := queue.New(queue.Config{DefaultMaxAttempts: 1})

	job, err := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 1, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	popped := q.Pop()
	q.MarkProcessing(popped, "ext-1")
	q.MoveToDLQ(popped, "boom")

	purger, err := New(q, "0 * * * *", 7*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("new purger: %v", err)
	}
	purger.Tick()

	if len(q.DLQEntries()) != 1 {
		t.Fatalf("expected the fresh DLQ entry to survive, got %d entries", len(q.DLQEntries()))
	}
	_ = job
}

func TestNew_RejectsInvalidCronExpression(t *testing.T) {
	q := queue.New(queue.Config{})
	if _, err := New(q, "not a cron expression", time.Hour, nil); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}
