// Package failover implements the Failover Controller: when a
// session is removed, every job in its in-flight set is detached, bumped,
// and either immediately rebound to another live extension or returned to
// its lane head with nextRetryAt set to now. Grounded on
// internal/orchestrator's retry-on-worker-loss path, generalized from
// "requeue a DAG step" to "rebind or requeue a dispatched job."
package failover

import (
	"log/slog"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/registry"
)

// Controller reacts to session removal, implementing registry.Disconnecter
// so the heartbeat supervisor can drive it directly.
type Controller struct {
	dispatcher *dispatcher.Dispatcher
	registry   *registry.Registry
	logger     *slog.Logger
}

// New wires a Controller over dispatcher and registry.
func New(d *dispatcher.Dispatcher, r *registry.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{dispatcher: d, registry: r, logger: logger}
}

// Disconnect implements registry.Disconnecter: it is the single entry
// point that tears down a session and recovers its work, guaranteeing the
// in-flight set is empty (via rebind or requeue) before the session
// record is freed.
func (c *Controller) Disconnect(sessionID string, reason string) {
	pending := c.dispatcher.PendingFor(sessionID)

	for _, req := range pending {
		c.dispatcher.ResolveWithoutQueueChange(req.JobID)

		job, ok := c.dispatcher.Queue().GetJob(req.JobID)
		if !ok {
			continue
		}

		if c.dispatcher.Rebind(job, req.RetryCount+1) {
			c.logger.Info("failover: rebound job", "job_id", job.ID, "from_extension", sessionID)
			continue
		}

		c.dispatcher.Queue().RequeueDetached(job)
		c.logger.Info("failover: no eligible worker, requeued at lane head", "job_id", job.ID)
	}

	if _, existed := c.registry.Remove(sessionID); existed {
		c.logger.Info("failover: session removed", "extension_id", sessionID, "reason", reason)
	}
}
