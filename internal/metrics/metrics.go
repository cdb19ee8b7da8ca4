// Package metrics exposes prometheus instrumentation for the daemon.
// Collection is passive; the daemon updates gauges and counters as it
// observes probes and applies decisions.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all daemon metrics.
type Registry struct {
	RouteUp          *prometheus.GaugeVec
	RouteActive      *prometheus.GaugeVec
	ProbeLossPercent *prometheus.GaugeVec
	ProbeLatency     *prometheus.GaugeVec

	TransitionsTotal *prometheus.CounterVec
	ReconcilesTotal  prometheus.Counter
	ReconcileErrors  prometheus.Counter
}

// Get returns the process-wide registry, creating it on first use.
func Get() *Registry {
	once.Do(func() {
		registry = &Registry{
			RouteUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "uplinkd_route_up",
				Help: "Health verdict per route (1 = up, 0 = down)",
			}, []string{"route"}),
			RouteActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "uplinkd_route_active",
				Help: "Whether the route currently holds the kernel entry",
			}, []string{"route"}),
			ProbeLossPercent: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "uplinkd_probe_loss_percent",
				Help: "Packet loss observed by the most recent probe",
			}, []string{"route"}),
			ProbeLatency: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "uplinkd_probe_latency_seconds",
				Help: "Mean round-trip time observed by the most recent probe",
			}, []string{"route"}),
			TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "uplinkd_health_transitions_total",
				Help: "Confirmed verdict changes per route",
			}, []string{"route", "verdict"}),
			ReconcilesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "uplinkd_reconciles_total",
				Help: "Reconciliations that mutated kernel state",
			}),
			ReconcileErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "uplinkd_reconcile_errors_total",
				Help: "Reconciliations that failed to apply",
			}),
		}
	})
	return registry
}

// ObserveProbe records the latest sample for a route.
func (r *Registry) ObserveProbe(route string, lossPercent float64, latency time.Duration) {
	r.ProbeLossPercent.WithLabelValues(route).Set(lossPercent)
	r.ProbeLatency.WithLabelValues(route).Set(latency.Seconds())
}

// SetRouteUp records a route's current verdict.
func (r *Registry) SetRouteUp(route string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	r.RouteUp.WithLabelValues(route).Set(v)
}

// SetActive marks exactly one route as holding the kernel entry.
func (r *Registry) SetActive(active string, all []string) {
	for _, name := range all {
		v := 0.0
		if name == active {
			v = 1
		}
		r.RouteActive.WithLabelValues(name).Set(v)
	}
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine; errors after shutdown are the caller's to ignore.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
