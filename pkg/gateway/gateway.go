// Package gateway is the composition root (spec.md §14): it wires C1-C6 and
// the Glue session layer together in the lock order spec.md §5 mandates
// (Tenancy -> Node Registry -> Workload Manager -> Preemption) and drives
// the periodic scheduler tick.
//
// Grounded on the teacher's pkg/operator.Operator: a chainable constructor
// that builds every controller and its dependencies up front, then exposes
// a single Start(ctx) that blocks until shutdown. This package drops the
// teacher's controller-runtime manager and webhook scaffolding (no
// apiserver backs this gateway) but keeps the "build everything, then run"
// shape and its use of clock.Clock/logr.Logger for every component.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/config"
	"github.com/clawbernetes/gateway/pkg/events"
	"github.com/clawbernetes/gateway/pkg/preemption"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/scheduling"
	"github.com/clawbernetes/gateway/pkg/session"
	"github.com/clawbernetes/gateway/pkg/store"
	"github.com/clawbernetes/gateway/pkg/tenancy"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// Gateway owns every component and the glue between them. Exported fields
// are what pkg/api and cmd/clawbernetes-gateway need to wire HTTP handlers
// and the node-facing transport on top.
type Gateway struct {
	Clock  clock.Clock
	Log    logr.Logger
	Config config.Config
	Store  store.Store

	Tenancy    *tenancy.Registry
	Nodes      *registry.Registry
	Priority   *priorityclass.Registry
	Workloads  *workload.Manager
	Dispatcher *NodeDispatcher
	Evictor    *preemption.Evictor
	Sessions   *session.Manager
	Router     *session.Router
	Bus        *events.Bus

	ticker *scheduling.Ticker
}

// New builds a Gateway from cfg, constructing every component in the
// system's lock order. No background work starts until Start is called.
func New(cfg config.Config, log logr.Logger, clk clock.Clock) (*Gateway, error) {
	g := &Gateway{
		Clock:  clk,
		Log:    log,
		Config: cfg,
		Store:  store.New(),
	}

	g.Tenancy = tenancy.New(clk)
	g.Nodes = registry.New(clk).WithThresholds(registry.Thresholds{
		HealthyThreshold:   cfg.HealthyThresholdDuration(),
		UnhealthyThreshold: cfg.UnhealthyThresholdDuration(),
		DrainingOverrides:  true,
	})
	g.Priority = priorityclass.NewRegistry()
	g.Workloads = workload.New(clk, g.Tenancy)
	if cfg.LogBufferLinesPerStream > 0 && cfg.LogLineMaxBytes > 0 {
		g.Workloads.WithLogDimensions(int(cfg.LogBufferLinesPerStream), int(cfg.LogLineMaxBytes))
	}

	g.Dispatcher = NewNodeDispatcher()
	updater := &notifyingUpdater{inner: g.Workloads, dispatcher: g.Dispatcher}
	grace := preemption.BoundGrace(cfg.Preemption.DefaultGraceDuration(), time.Duration(cfg.Preemption.MaxGraceSecs)*time.Second)
	g.Evictor = preemption.NewEvictor(clk, g.Dispatcher, updater, grace)

	g.Bus = events.NewBus()
	g.Sessions = session.NewManager(clk, g.Bus)

	g.Router = session.NewRouter(log, g.Nodes, updater, g.Bus, cfg.HeartbeatIntervalSecs, cfg.MetricsIntervalSecs)

	ticker, err := scheduling.NewTicker(log, fmt.Sprintf("@every %ds", cfg.SchedulerTickIntervalSecs), g.Reconcile)
	if err != nil {
		return nil, fmt.Errorf("gateway: building scheduler ticker: %w", err)
	}
	g.ticker = ticker

	for _, c := range g.Priority.List() {
		if err := g.Store.PutPriorityClass(c); err != nil {
			return nil, fmt.Errorf("gateway: seeding priority class store: %w", err)
		}
	}

	return g, nil
}

// Start begins the periodic scheduler tick. It does not block; callers run
// their own accept loop (node transport, HTTP API) and call Shutdown on the
// way out.
func (g *Gateway) Start(ctx context.Context) error {
	g.Log.Info("starting scheduler ticker", "interval_secs", g.Config.SchedulerTickIntervalSecs)
	g.ticker.Start()
	return nil
}

// Shutdown stops the scheduler ticker, then waits SessionOutboundDrainTimeout
// before returning (or returns ctx.Err() if ctx ends first). Outbound frames
// are written synchronously, so there is no queue for this wait to flush,
// and open node sessions are not closed here.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.Log.Info("stopping scheduler ticker")
	g.ticker.Stop()

	drain := g.Config.SessionOutboundDrainTimeout()
	g.Log.Info("draining sessions", "timeout", drain)
	select {
	case <-time.After(drain):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
