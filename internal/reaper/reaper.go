// Package reaper bridges internal/wire's per-connection frame callbacks to
// the Registry and Dispatcher: one reaper per connected session, resolving
// that session's job outcomes as frames arrive. Each Client.Run goroutine
// calls these methods directly rather than through an explicit channel:
// both the Registry and Dispatcher are already internally synchronized, so
// the extra hop would add latency without changing the single-mutator
// guarantee.
package reaper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/registry"
	"github.com/shaiso/dispatch-engine/internal/wire"
)

// Bridge implements wire.Handler, translating wire frames into
// Registry/Dispatcher calls. One Bridge is shared by every Client.
type Bridge struct {
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	disc       registry.Disconnecter
	logger     *slog.Logger
}

// New wires a Bridge over registry and dispatcher. disc is notified on
// socket close, normally the Failover Controller.
func New(r *registry.Registry, d *dispatcher.Dispatcher, disc registry.Disconnecter, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{registry: r, dispatcher: d, disc: disc, logger: logger}
}

// OnConnect registers the socket under its temporary id, unauthenticated,
// as soon as it is accepted (connect -> unauthenticated transition).
// sender is the wire.Client itself.
func (b *Bridge) OnConnect(tempID string, sender registry.Sender) {
	if err := b.registry.RegisterUnauthenticated(tempID, sender); err != nil {
		b.logger.Warn("reaper: failed to register unauthenticated session", "temp_id", tempID, "error", err)
	}
}

// OnAuthenticate collapses the session's temporary id into its declared
// extensionId with the capabilities it claims, via Registry.Rekey
// (unauthenticated -> connected transition).
func (b *Bridge) OnAuthenticate(tempID string, sender registry.Sender, data wire.AuthenticateData) error {
	if _, exists := b.registry.Get(data.ExtensionID); exists {
		return fmt.Errorf("extension %s already connected", data.ExtensionID)
	}

	caps := make([]domain.Capability, 0, len(data.Capabilities))
	for _, c := range data.Capabilities {
		caps = append(caps, domain.Capability{Name: c.Name, Version: c.Version})
	}

	return b.registry.Rekey(tempID, data.ExtensionID, caps)
}

// OnHeartbeat records liveness for id (markActivity).
func (b *Bridge) OnHeartbeat(id string, data wire.HeartbeatData) {
	if err := b.registry.RecordHeartbeat(id); err != nil {
		b.logger.Debug("reaper: heartbeat for unknown session", "extension_id", id)
	}
}

// OnImageGenerated resolves a job as completed.
func (b *Bridge) OnImageGenerated(id string, data wire.ImageGeneratedData) {
	b.registry.MarkActivity(id)
	jobID, err := uuid.Parse(data.RequestID)
	if err != nil {
		b.logger.Warn("reaper: image_generated with invalid requestId", "extension_id", id, "request_id", data.RequestID)
		return
	}

	job, ok := b.dispatcher.Queue().GetJob(jobID)
	if !ok {
		b.logger.Debug("reaper: image_generated for unknown job", "job_id", jobID)
		return
	}

	var processingTime time.Duration
	if job.LastAttemptAt != nil {
		processingTime = time.Since(*job.LastAttemptAt)
	}

	b.dispatcher.Complete(jobID, &domain.Result{ImageURL: data.ImageURL, Metadata: data.Metadata}, processingTime)
}

// OnImageGenerationFailed resolves a job as failed.
func (b *Bridge) OnImageGenerationFailed(id string, data wire.ImageGenerationFailedData) {
	b.registry.MarkActivity(id)
	jobID, err := uuid.Parse(data.RequestID)
	if err != nil {
		b.logger.Warn("reaper: image_generation_failed with invalid requestId", "extension_id", id, "request_id", data.RequestID)
		return
	}
	b.dispatcher.Fail(jobID, data.Error)
}

// OnImageGenerationProgress updates liveness only.
func (b *Bridge) OnImageGenerationProgress(id string, data wire.ImageGenerationProgressData) {
	b.registry.MarkActivity(id)
	if jobID, err := uuid.Parse(data.RequestID); err == nil {
		b.dispatcher.Progress(jobID)
	}
}

// OnDisconnect is invoked by wire.Client when its socket read loop exits.
// Delegates to the Failover Controller so removal and job recovery stay
// one atomic step.
func (b *Bridge) OnDisconnect(id string, reason string) {
	b.logger.Info("reaper: session socket closed", "extension_id", id, "reason", reason)
	if b.disc != nil {
		b.disc.Disconnect(id, reason)
	}
}
