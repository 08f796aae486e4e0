// Package studiod supervises a set of locally installed helper services
// (model servers, image generators, file processors) on behalf of a
// desktop-extension UI. It exposes an HTTP + WebSocket control plane,
// re-probes every service on a fixed interval, and pushes each status
// transition to all connected clients.
package studiod

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"studiod/internal/config"
	"studiod/internal/history"
	"studiod/internal/hub"
	"studiod/internal/logger"
	"studiod/internal/metrics"
	"studiod/internal/probe"
	"studiod/internal/registry"
	"studiod/internal/server"
	"studiod/internal/store"
	"studiod/internal/supervisor"
)

// Re-export core types for external consumers.

type Config = config.FileConfig

type Status = registry.Status

type PublicView = registry.PublicView

// LoadConfig reads a TOML configuration file; an empty path yields the
// stock service table.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Orchestrator assembles the registry, supervisor, health loop, realtime
// hub and control API into one runnable unit.
type Orchestrator struct {
	cfg  config.FileConfig
	reg  *registry.Registry
	sup  *supervisor.Supervisor
	hub  *hub.Hub
	rtr  *server.Router
	st   store.Store
	sink history.Sink
}

// New builds an orchestrator from configuration. The service table is
// fixed from here on; only statuses change at runtime.
func New(cfg config.FileConfig) (*Orchestrator, error) {
	logger.Setup(cfg.Log.Level, cfg.Log.Color)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	reg, err := registry.Build(cfg.Descriptors())
	if err != nil {
		return nil, err
	}

	var popts []probe.Option
	if cfg.Health.AttemptTimeout > 0 {
		popts = append(popts, probe.WithAttemptTimeout(cfg.Health.AttemptTimeout))
	}
	if cfg.Health.PollInterval > 0 {
		popts = append(popts, probe.WithPollInterval(cfg.Health.PollInterval))
	}
	prober := probe.New(popts...)

	var sopts []supervisor.Option
	if cfg.Health.Interval > 0 {
		sopts = append(sopts, supervisor.WithHealthInterval(cfg.Health.Interval))
	}
	if cfg.Health.ReadinessBudget > 0 {
		sopts = append(sopts, supervisor.WithReadinessBudget(cfg.Health.ReadinessBudget))
	}
	sup := supervisor.New(reg, prober, sopts...)

	h := hub.New(reg, sup)

	st, err := store.FromConfig(cfg.Store)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("transition store schema: %w", err)
		}
	}

	var sink history.Sink
	if cfg.History.Type == "clickhouse" {
		sink, err = history.NewClickHouseSink(cfg.History.Addr, cfg.History.Table)
		if err != nil {
			return nil, err
		}
	}

	o := &Orchestrator{cfg: cfg, reg: reg, sup: sup, hub: h, st: st, sink: sink}
	o.rtr = server.NewRouter(sup, reg, h, cfg.Server.BasePath)

	// Single wiring point for the mutate-then-broadcast invariant: every
	// transition fans out to clients and, best-effort, to persistence.
	reg.OnChange(func(name string, prev registry.Status, view registry.PublicView) {
		h.BroadcastUpdate(name, view)
		o.recordTransition(name, prev, view.Status)
	})
	return o, nil
}

func (o *Orchestrator) recordTransition(name string, from, to registry.Status) {
	if o.st == nil && o.sink == nil {
		return
	}
	t := store.Transition{Service: name, From: from.String(), To: to.String(), At: time.Now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if o.st != nil {
			_ = o.st.RecordTransition(ctx, t)
		}
		if o.sink != nil {
			_ = o.sink.Send(ctx, history.Event{OccurredAt: time.Now().UTC(), Transition: t})
		}
	}()
}

// Start launches a named service (delegates to the supervisor).
func (o *Orchestrator) Start(ctx context.Context, name string) error {
	return o.sup.Start(ctx, name)
}

// Stop terminates a named service.
func (o *Orchestrator) Stop(name string) error { return o.sup.Stop(name) }

// Status returns the full public status table.
func (o *Orchestrator) Status() map[string]PublicView { return o.reg.Snapshot() }

// Handler exposes the control API for embedding or tests.
func (o *Orchestrator) Handler() http.Handler { return o.rtr.Handler() }

// Run serves the control plane until ctx is canceled, then terminates
// every supervised child before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	go o.hub.Run(ctx)
	go o.sup.RunHealthLoop(ctx)

	srv := server.NewServer(o.cfg.Server.Listen, o.rtr)

	<-ctx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)

	o.sup.Shutdown()
	if o.st != nil {
		_ = o.st.Close()
	}
	if o.sink != nil {
		_ = o.sink.Close()
	}
	return nil
}
