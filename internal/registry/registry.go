// Package registry implements the Extension Registry: the set
// of live worker sessions with capabilities, load, liveness, and a send
// channel. Grounded on internal/mq/connection.go's watch-and-reconnect
// idiom, repurposed from "reconnect to broker" to "probe session liveness."
package registry

import (
	"sync"
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
)

// Sender abstracts the transport a session uses to receive work, so the
// Registry does not depend on internal/wire (which in turn depends on
// Registry for session bookkeeping).
type Sender interface {
	Send(frame any) error
	Close(code int, reason string) error
}

// entry pairs a session's observable state with its transport.
type entry struct {
	session *domain.ExtensionSession
	sender  Sender
}

// Registry owns the set of ExtensionSessions. All mutation is serialized
// through its mutex; session metric fields (success/failure/avgResponse)
// are only ever updated via Registry methods called from the
// dispatcher/reaper, never directly from I/O goroutines.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
	bus     *eventbus.Bus
}

// New creates an empty Registry. bus may be nil, in which case Registry
// publishes nothing (mirrors internal/queue.Store's nil-safe bus field).
func New(bus *eventbus.Bus) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
		bus:     bus,
	}
}

// Register adds a new session, failing if the id is already present
// (invariant: exactly one session per id). The session is connected
// (authenticated) from the start; use RegisterUnauthenticated for a
// socket that has not yet sent its authenticate frame.
func (r *Registry) Register(session *domain.ExtensionSession, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[session.ID]; exists {
		return ErrAlreadyRegistered
	}
	session.ConnectedAt = r.now()
	session.LastActivityAt = r.now()
	session.Status = domain.SessionConnected
	r.entries[session.ID] = &entry{session: session, sender: sender}
	r.publish(domain.EventExtensionConnected, session.ID)
	return nil
}

// RegisterUnauthenticated adds a session under its temporary connection id,
// in the unauthenticated state, before the authenticate frame arrives. No
// extension.connected event fires yet — that happens once Rekey collapses
// the session into its real extensionId.
func (r *Registry) RegisterUnauthenticated(tempID string, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tempID]; exists {
		return ErrAlreadyRegistered
	}
	session := &domain.ExtensionSession{
		ID:             tempID,
		Status:         domain.SessionUnauthenticated,
		ConnectedAt:    r.now(),
		LastActivityAt: r.now(),
	}
	r.entries[tempID] = &entry{session: session, sender: sender}
	return nil
}

// Rekey collapses a session authenticated with a temporary id into its
// real extensionId, atomically (remove temp, insert real), recording the
// claimed capabilities and transitioning unauthenticated -> connected.
// Fails if realID is already registered under another live session.
func (r *Registry) Rekey(tempID, realID string, capabilities []domain.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[tempID]
	if !ok {
		return ErrUnknownSession
	}
	if _, exists := r.entries[realID]; exists && realID != tempID {
		return ErrAlreadyRegistered
	}
	delete(r.entries, tempID)
	e.session.ID = realID
	e.session.Capabilities = capabilities
	e.session.Status = domain.SessionConnected
	e.session.LastActivityAt = r.now()
	r.entries[realID] = e
	r.publish(domain.EventExtensionConnected, realID)
	return nil
}

// MarkActivity records a frame's arrival, bumping LastActivityAt and
// recovering an unhealthy session back to connected (one
// permitted non-monotonic transition).
func (r *Registry) MarkActivity(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markActivityLocked(id)
}

func (r *Registry) markActivityLocked(id string) error {
	e, ok := r.entries[id]
	if !ok {
		return ErrUnknownSession
	}
	e.session.LastActivityAt = r.now()
	e.session.MessagesReceived++
	if e.session.Status == domain.SessionUnhealthy {
		e.session.Status = domain.SessionConnected
	}
	return nil
}

// RecordHeartbeat is MarkActivity plus an extension.heartbeat publish,
// used specifically by the heartbeat frame handler so heartbeat events
// don't fire on every ordinary frame (MarkActivity alone covers those).
func (r *Registry) RecordHeartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.markActivityLocked(id); err != nil {
		return err
	}
	r.publish(domain.EventExtensionHeartbeat, id)
	return nil
}

// Send forwards frame to the session's transport and increments its sent
// counter. Returns ErrUnknownSession if the session is gone.
func (r *Registry) Send(id string, frame any) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.session.MessagesSent++
	}
	r.mu.Unlock()

	if !ok {
		return ErrUnknownSession
	}
	return e.sender.Send(frame)
}

// Get returns a copy of the session's current state.
func (r *Registry) Get(id string) (domain.ExtensionSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.ExtensionSession{}, false
	}
	return *e.session, true
}

// Snapshot returns a copy of every currently registered session.
func (r *Registry) Snapshot() []domain.ExtensionSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ExtensionSession, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e.session)
	}
	return out
}

// Connected returns every session currently eligible for dispatch
// (status == connected) step 3.
func (r *Registry) Connected() []*domain.ExtensionSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ExtensionSession, 0, len(r.entries))
	for _, e := range r.entries {
		if e.session.Status.CanDispatch() {
			out = append(out, e.session)
		}
	}
	return out
}

// IncrementInFlight adjusts a session's in-flight counter on bind/detach.
func (r *Registry) IncrementInFlight(id string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.session.InFlightCount += delta
		if e.session.InFlightCount < 0 {
			e.session.InFlightCount = 0
		}
	}
}

// RecordSuccess/RecordFailure update a session's response-time and
// success/failure stats; called only from the Reaper.
func (r *Registry) RecordSuccess(id string, responseTimeMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.session.RecordSuccess(responseTimeMs)
	}
}

func (r *Registry) RecordFailure(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.session.RecordFailure()
	}
}

// MarkUnhealthy transitions connected -> unhealthy (heartbeat supervisor
// detecting silence past T_unhealthy).
func (r *Registry) MarkUnhealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && e.session.Status == domain.SessionConnected {
		e.session.Status = domain.SessionUnhealthy
	}
}

// Remove deletes a session's record, returning its final state. Callers
// (Failover Controller) must guarantee its in-flight jobs are already
// rebound or requeued before calling Remove — the Registry itself does not
// enforce that invariant, it is the Failover Controller's responsibility.
func (r *Registry) Remove(id string) (domain.ExtensionSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return domain.ExtensionSession{}, false
	}
	wasConnected := e.session.Status != domain.SessionUnauthenticated
	e.session.Status = domain.SessionDisconnected
	delete(r.entries, id)
	if wasConnected {
		r.publish(domain.EventExtensionDisconnected, id)
	}
	return *e.session, true
}

// publish is a no-op when bus is nil, mirroring internal/queue.Store.publish.
func (r *Registry) publish(t domain.EventType, extensionID string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(domain.Event{
		Type:        t,
		Timestamp:   r.now(),
		ExtensionID: extensionID,
	})
}

// The Registry tracks only each session's in-flight count, not which jobs;
// the job ids per session live in the dispatcher's pending-request map.
// See internal/router.PendingMap.InFlightFor.
