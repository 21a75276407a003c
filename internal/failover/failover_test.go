package failover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
)

type noopSender struct{}

func (noopSender) Send(frame any) error              { return nil }
func (noopSender) Close(code int, reason string) error { return nil }

func newTestRig(t *testing.T) (*dispatcher.Dispatcher, *registry.Registry, *queue.Store) {
	t.Helper()

	bus := eventbus.New(nil)
	q := queue.New(queue.Config{DefaultMaxAttempts: 5, Bus: bus})
	reg := registry.New(bus)
	bucket := ratelimit.NewBucket(1000, 1000, ratelimit.RealClock)

	disp := dispatcher.New(dispatcher.Config{
		Queue:       q,
		Registry:    reg,
		RateLimiter: bucket,
		Bus:         bus,
	})

	return disp, reg, q
}

func registerSession(t *testing.T, reg *registry.Registry, id string) {
	t.Helper()
	require.NoError(t, reg.Register(&domain.ExtensionSession{
		ID:          id,
		Status:      domain.SessionConnected,
		ConnectedAt: time.Now(),
	}, noopSender{}))
}

func TestController_Disconnect_RebindsToAnotherSession(t *testing.T) {
	disp, reg, q := newTestRig(t)
	ctl := New(disp, reg, nil)

	registerSession(t, reg, "ext-1")
	registerSession(t, reg, "ext-2")

	job, err := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 0, "")
	require.NoError(t, err)

	popped := q.Pop()
	require.Equal(t, job.ID, popped.ID)
	require.True(t, disp.Rebind(popped, 0))

	got, ok := q.GetJob(job.ID)
	require.True(t, ok)
	require.Equal(t, domain.JobStatusProcessing, got.Status)
	assignedTo := got.AssignedExtensionID
	require.Contains(t, []string{"ext-1", "ext-2"}, assignedTo)

	// Mirrors the real call path (registry.Supervisor.sweep): a session is
	// marked unhealthy, which excludes it from router.Select, before the
	// Failover Controller is invoked.
	reg.MarkUnhealthy(assignedTo)
	ctl.Disconnect(assignedTo, "socket closed")

	got, ok = q.GetJob(job.ID)
	require.True(t, ok)
	require.Equal(t, domain.JobStatusProcessing, got.Status, "should have been rebound to the surviving session")
	require.NotEqual(t, assignedTo, got.AssignedExtensionID)

	_, stillRegistered := reg.Get(assignedTo)
	require.False(t, stillRegistered)
}

func TestController_Disconnect_RequeuesWhenNoEligibleSession(t *testing.T) {
	disp, reg, q := newTestRig(t)
	ctl := New(disp, reg, nil)

	registerSession(t, reg, "ext-1")

	job, err := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 0, "")
	require.NoError(t, err)

	popped := q.Pop()
	require.True(t, disp.Rebind(popped, 0))

	reg.MarkUnhealthy("ext-1")
	ctl.Disconnect("ext-1", "heartbeat timeout")

	requeued := q.Pop()
	require.NotNil(t, requeued, "with no other session, the job goes back to its lane head")
	require.Equal(t, job.ID, requeued.ID)
	require.Equal(t, domain.JobStatusPending, requeued.Status, "must not be left processing with no assignment")
	require.Empty(t, requeued.AssignedExtensionID)

	_, stillRegistered := reg.Get("ext-1")
	require.False(t, stillRegistered)
}
