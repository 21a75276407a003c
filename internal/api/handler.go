package api

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
	"github.com/shaiso/dispatch-engine/internal/reaper"
	"github.com/shaiso/dispatch-engine/internal/wire"
)

// Handler is the HTTP edge's dependency-injected entry point.
type Handler struct {
	queue       *queue.Store
	dispatcher  *dispatcher.Dispatcher
	registry    *registry.Registry
	rateLimiter *ratelimit.Bucket
	bridge      *reaper.Bridge
	validate    *validator.Validate
	logger      *slog.Logger
}

// Config wires a Handler.
type Config struct {
	Queue          *queue.Store
	Dispatcher     *dispatcher.Dispatcher
	Registry       *registry.Registry
	RateLimiter    *ratelimit.Bucket
	Bridge         *reaper.Bridge
	Logger         *slog.Logger
}

// NewHandler constructs a Handler ready to RegisterRoutes.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		queue:       cfg.Queue,
		dispatcher:  cfg.Dispatcher,
		registry:    cfg.Registry,
		rateLimiter: cfg.RateLimiter,
		bridge:      cfg.Bridge,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// newWireHandler returns the wire.Handler that /ws connections are bound
// to: this Handler's bridge.
func (h *Handler) newWireHandler() wire.Handler {
	return h.bridge
}
