// Package monitor runs the periodic health-check loop for one route.
// Each monitor is an independent goroutine: a slow or hung probe on one
// route never delays probing of any other.
package monitor

import (
	"context"
	"time"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/events"
	"grimm.is/uplinkd/internal/health"
	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
	"grimm.is/uplinkd/internal/probe"
)

// Monitor owns the probe schedule for a single configured route.
type Monitor struct {
	spec        config.RouteSpec
	prober      probe.Prober
	evaluator   *health.Evaluator
	transitions chan<- health.Transition
	hub         *events.Hub
	logger      *logging.Logger
	reg         *metrics.Registry
	debug       bool
}

// SetMetrics attaches a metrics registry; nil disables recording.
func (m *Monitor) SetMetrics(reg *metrics.Registry) {
	m.reg = reg
}

// New creates a monitor for one route. Transitions are delivered to the
// given channel in the order they are observed.
func New(spec config.RouteSpec, prober probe.Prober, evaluator *health.Evaluator,
	transitions chan<- health.Transition, hub *events.Hub, logger *logging.Logger, debug bool) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		spec:        spec,
		prober:      prober,
		evaluator:   evaluator,
		transitions: transitions,
		hub:         hub,
		logger:      logger.WithComponent("monitor"),
		debug:       debug,
	}
}

// Run loops until ctx is cancelled. An initial probe fires immediately
// so startup does not wait a full interval for the first verdict.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("starting monitoring",
		"route", m.spec.Name, "target", m.spec.Probe.Target, "interval", m.spec.Probe.Interval())

	m.checkOnce(ctx)

	ticker := time.NewTicker(m.spec.Probe.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped", "route", m.spec.Name)
			return
		case <-ticker.C:
			m.checkOnce(ctx)
		}
	}
}

func (m *Monitor) checkOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.spec.Probe.Timeout())
	defer cancel()

	sample, err := m.prober.Probe(probeCtx, probe.Spec{
		Route:     m.spec.Name,
		Target:    m.spec.Probe.Target,
		Interface: m.spec.Interface,
		Count:     m.spec.Probe.Count,
		Timeout:   m.spec.Probe.Timeout(),
	})
	if err != nil {
		// Probe primitive failures are just failing samples.
		sample = probe.Unreachable(m.spec.Probe.Count)
		m.logger.Debug("probe failed", "route", m.spec.Name, "target", m.spec.Probe.Target, "error", err)
	}
	if ctx.Err() != nil {
		return
	}

	latencyMs := float64(sample.AvgRTT) / float64(time.Millisecond)
	if m.reg != nil {
		m.reg.ObserveProbe(m.spec.Name, sample.LossPercent, sample.AvgRTT)
	}
	if m.debug && m.hub != nil {
		m.hub.EmitProbeResult(m.spec.Name, m.spec.Probe.Target, sample.LossPercent, latencyMs, err)
	}

	transition, changed := m.evaluator.Evaluate(sample)

	if raised, clearedWarn := m.evaluator.Warning(sample); m.hub != nil {
		if raised {
			m.hub.Publish(events.Event{
				Type:   events.EventHealthWarning,
				Source: "monitor",
				Data: events.HealthWarningData{
					Route:       m.spec.Name,
					LossPercent: sample.LossPercent,
					LatencyMs:   latencyMs,
				},
			})
		} else if clearedWarn {
			m.hub.Publish(events.Event{
				Type:   events.EventHealthClear,
				Source: "monitor",
				Data:   events.HealthWarningData{Route: m.spec.Name},
			})
		}
	}

	if !changed {
		return
	}

	if m.hub != nil {
		m.hub.EmitLinkHealth(m.spec.Name, m.spec.Interface,
			transition.To == health.VerdictUp, sample.LossPercent, latencyMs)
	}

	select {
	case m.transitions <- transition:
	case <-ctx.Done():
	}
}
