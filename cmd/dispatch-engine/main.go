// dispatch-engine is the combined process binary for the job dispatch
// engine: HTTP/WS edge, dispatcher tick loop, heartbeat supervisor, and the
// optional persistence/forwarding/retention side-tasks. The long-running
// services run as leaves of a single suture service tree (internal/supervise);
// the HTTP/WS server runs beside that tree in an errgroup. One process,
// no per-component service split.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/dispatch-engine/internal/api"
	"github.com/shaiso/dispatch-engine/internal/config"
	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/eventforward"
	"github.com/shaiso/dispatch-engine/internal/failover"
	"github.com/shaiso/dispatch-engine/internal/metrics"
	"github.com/shaiso/dispatch-engine/internal/mq"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/reaper"
	"github.com/shaiso/dispatch-engine/internal/registry"
	"github.com/shaiso/dispatch-engine/internal/retention"
	"github.com/shaiso/dispatch-engine/internal/snapshot"
	"github.com/shaiso/dispatch-engine/internal/supervise"
	"github.com/shaiso/dispatch-engine/internal/telemetry"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Optional YAML config file (env DISPATCH_* always applies)")
	flag.Parse()

	logger := telemetry.SetupLogger()
	logger.Info("starting dispatch-engine")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := eventbus.New(logger)

	queueStore := queue.New(queue.Config{
		MaxQueueSize:       cfg.MaxQueueSize,
		RetryDelaysMs:      cfg.RetryDelaysMs,
		DefaultMaxAttempts: cfg.DLQThreshold,
		Bus:                bus,
	})

	reg := registry.New(bus)
	bucket := ratelimit.NewBucket(cfg.RateLimit, cfg.RateLimit, ratelimit.RealClock)

	// Optional persistence hook: a nil pool makes every Store
	// method a no-op, so the dispatcher can call Save unconditionally.
	snapStore := snapshot.New(nil, logger)
	if cfg.SnapshotDSN != "" {
		pool, err := snapshot.NewPool(ctx, cfg.SnapshotDSN)
		if err != nil {
			logger.Error("failed to connect snapshot database, continuing without persistence", "error", err)
		} else {
			defer pool.Close()
			logger.Info("snapshot persistence connected")
			snapStore = snapshot.New(pool, logger)
		}
	}

	disp := dispatcher.New(dispatcher.Config{
		Queue:             queueStore,
		Registry:          reg,
		RateLimiter:       bucket,
		Bus:               bus,
		ProcessingTimeout: cfg.ProcessingTimeout(),
		Logger:            logger,
		Snapshot:          snapStore,
	})

	failoverCtl := failover.New(disp, reg, logger)
	bridge := reaper.New(reg, disp, failoverCtl, logger)

	hbSupervisor := registry.NewSupervisor(reg, failoverCtl, logger)
	hbSupervisor.Interval = cfg.HeartbeatInterval()
	hbSupervisor.UnhealthyAfter = cfg.UnhealthyThreshold()
	hbSupervisor.MissedProbeLimit = cfg.MissedProbeLimit

	handler := api.NewHandler(api.Config{
		Queue:       queueStore,
		Dispatcher:  disp,
		Registry:    reg,
		RateLimiter: bucket,
		Bridge:      bridge,
		Logger:      logger,
	})

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	tree := supervise.New(logger, supervise.DefaultConfig())
	tree.Add(supervise.RunFunc{Name: "dispatcher", Fn: disp.Run})
	tree.Add(supervise.RunFunc{Name: "heartbeat-supervisor", Fn: hbSupervisor.Run})

	collectors := metrics.NewCollectors(prometheus.DefaultRegisterer)
	tree.Add(supervise.RunFunc{Name: "metrics-collector", Fn: func(ctx context.Context) error {
		return collectors.Run(ctx, bus, logger)
	}})

	// Optional: forward Event Bus topics to an external RabbitMQ exchange
	// (event_forward_amqp_url).
	var mqConn *mq.Connection
	if cfg.EventForwardAMQPURL != "" {
		mqConn, err = mq.NewConnection(cfg.EventForwardAMQPURL, logger)
		if err != nil {
			logger.Warn("event-forward RabbitMQ not available, continuing without forwarding", "error", err)
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to declare event-forward topology", "error", err)
			}
			forwarder := eventforward.New(mqConn, logger)
			tree.Add(supervise.RunFunc{Name: "event-forwarder", Fn: func(ctx context.Context) error {
				return forwarder.Run(ctx, bus)
			}})
			logger.Info("event forwarding enabled", "url", cfg.EventForwardAMQPURL)
		}
	}

	// Optional: periodic DLQ retention sweep (dlq_retention_*).
	if cfg.DLQRetentionCron != "" {
		purger, err := retention.New(queueStore, cfg.DLQRetentionCron, cfg.DLQRetentionAge, logger)
		if err != nil {
			logger.Error("invalid dlq_retention_cron, retention disabled", "error", err)
		} else {
			tree.Add(supervise.RunFunc{Name: "dlq-retention", Fn: purger.Run})
			logger.Info("dlq retention enabled", "cron", cfg.DLQRetentionCron, "max_age", cfg.DLQRetentionAge)
		}
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return tree.Serve(groupCtx)
	})

	group.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	<-ctx.Done()
	logger.Info("shutting down")

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("stopped")
}
