// Package daemon wires the monitors, arbiter, and applier together.
// All health transitions converge onto one consumer goroutine so
// reconciliations happen strictly in the order transitions were
// observed, and no two can race on kernel state.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/events"
	"grimm.is/uplinkd/internal/health"
	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
	"grimm.is/uplinkd/internal/monitor"
	"grimm.is/uplinkd/internal/probe"
	"grimm.is/uplinkd/internal/routing"
)

// Options configures a Daemon. Zero-value fields select production
// defaults; tests inject fakes.
type Options struct {
	Config    *config.Config
	Prober    probe.Prober
	Netlinker routing.Netlinker
	Hub       *events.Hub
	Logger    *logging.Logger
	Metrics   *metrics.Registry
	Debug     bool
}

// Daemon is the orchestrator: one monitor per configured route, a
// shared arbiter, and the single-writer applier.
type Daemon struct {
	cfg     *config.Config
	hub     *events.Hub
	logger  *logging.Logger
	reg     *metrics.Registry
	arbiter *routing.Arbiter
	applier *routing.Applier
	base    *logging.Logger

	monitors    []*monitor.Monitor
	transitions chan health.Transition
	states      map[string]health.State
	routeNames  []string
	debug       bool
}

// New validates wiring and builds the daemon. Gateways left blank in
// the configuration are discovered from the interface's existing
// kernel routes.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	prober := opts.Prober
	if prober == nil {
		prober = probe.ForMethod(cfg.Settings.ProbeMethod)
	}
	nl := opts.Netlinker
	if nl == nil {
		nl = routing.DefaultNetlinker
	}

	dlog := logger.WithComponent("daemon")
	for i := range cfg.Routes {
		r := &cfg.Routes[i]
		if r.Gateway != "" {
			continue
		}
		gw, err := routing.DiscoverGateway(nl, r.Interface)
		if err != nil || gw == "" {
			dlog.Warn("no gateway discovered, using device route",
				"route", r.Name, "interface", r.Interface, "error", err)
			continue
		}
		dlog.Info("discovered gateway", "route", r.Name, "interface", r.Interface, "gateway", gw)
		r.Gateway = gw
	}

	arbiter, err := routing.NewArbiter(cfg.Routes)
	if err != nil {
		return nil, err
	}
	applier := routing.NewApplier(nl, cfg.Routes, cfg.Settings.RouteProtocol, hub, logger)

	d := &Daemon{
		cfg:         cfg,
		hub:         hub,
		logger:      dlog,
		base:        logger,
		reg:         opts.Metrics,
		arbiter:     arbiter,
		applier:     applier,
		transitions: make(chan health.Transition, 64),
		states:      make(map[string]health.State, len(cfg.Routes)),
		debug:       opts.Debug,
	}

	for _, spec := range cfg.Routes {
		d.routeNames = append(d.routeNames, spec.Name)
		d.states[spec.Name] = health.State{Route: spec.Name, Verdict: health.VerdictDown}

		ev := health.NewEvaluator(spec.Name, health.Thresholds{
			MaxLoss:    spec.Probe.MaxLoss,
			MaxLatency: spec.Probe.MaxLatency(),
		}, cfg.Settings.FlapThreshold, nil)

		m := monitor.New(spec, prober, ev, d.transitions, hub, logger, opts.Debug)
		m.SetMetrics(opts.Metrics)
		d.monitors = append(d.monitors, m)
	}

	return d, nil
}

// Hub exposes the event bus for external sinks.
func (d *Daemon) Hub() *events.Hub {
	return d.hub
}

// Run starts all monitors and consumes transitions until ctx is
// cancelled. The first reconciliation waits for every route's initial
// verdict so startup never briefly installs a worse route than needed.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting", "routes", len(d.cfg.Routes),
		"flap_threshold", d.cfg.Settings.FlapThreshold)

	go logSink(ctx, d.hub, d.base)

	var wg sync.WaitGroup
	for _, m := range d.monitors {
		wg.Add(1)
		go func(m *monitor.Monitor) {
			defer wg.Done()
			m.Run(ctx)
		}(m)
	}

	pending := make(map[string]bool, len(d.routeNames))
	for _, name := range d.routeNames {
		pending[name] = true
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case tr := <-d.transitions:
			d.applyTransition(tr)
			if len(pending) > 0 {
				delete(pending, tr.Route)
				if len(pending) > 0 {
					continue
				}
				d.logger.Info("first check round complete, applying routes")
			}
			d.reconcile()
		}
	}

	wg.Wait()

	if d.cfg.Settings.CleanupOnExit {
		d.logger.Info("cleaning up managed routes")
		if err := d.applier.Cleanup(); err != nil {
			d.logger.Error("cleanup incomplete", "error", err)
		}
	}
	d.logger.Info("stopped")
	return ctx.Err()
}

func (d *Daemon) applyTransition(tr health.Transition) {
	st := d.states[tr.Route]
	st.Verdict = tr.To
	st.LastTransition = tr.At
	st.LastSample = tr.Sample
	d.states[tr.Route] = st

	if d.reg != nil {
		d.reg.SetRouteUp(tr.Route, tr.To == health.VerdictUp)
		d.reg.TransitionsTotal.WithLabelValues(tr.Route, string(tr.To)).Inc()
	}
}

// reconcile recomputes the decision and hands it to the applier. The
// applier no-ops on unchanged decisions, so calling this on every
// transition cannot produce redundant kernel writes.
func (d *Daemon) reconcile() {
	decision := d.arbiter.Recompute(d.states)
	if decision.Fallback {
		d.logger.Warn("no healthy route, keeping last resort", "route", decision.Active)
	}

	changed := d.applier.LastApplied() != decision.Active
	if err := d.applier.Reconcile(decision); err != nil {
		if d.reg != nil {
			d.reg.ReconcileErrors.Inc()
		}
		return
	}
	if changed && d.reg != nil {
		d.reg.ReconcilesTotal.Inc()
		d.reg.SetActive(decision.Active, d.routeNames)
	}
}
