// Package probe issues health probes for candidate routes. Two
// implementations exist: PingProber speaks ICMP directly through
// pro-bing, ExecProber shells out to the system ping utility for
// environments where raw sockets are unavailable.
package probe

import (
	"context"
	"time"
)

// Spec describes one probe invocation.
type Spec struct {
	Route     string // route name, carried through for diagnostics
	Target    string // address to probe
	Interface string // source interface to bind, may be empty
	Count     int    // echoes per invocation
	Timeout   time.Duration
}

// Result is a loss/latency sample for one probe invocation.
type Result struct {
	LossPercent float64
	AvgRTT      time.Duration
	Sent        int
	Received    int
}

// Failed reports whether the probe saw no replies at all.
func (r Result) Failed() bool {
	return r.Received == 0
}

// Unreachable is the sample recorded when the probe primitive itself
// could not run (interface down, command missing, timeout).
func Unreachable(count int) Result {
	return Result{LossPercent: 100, Sent: count}
}

// Prober issues one health probe and returns a loss/latency sample.
// Implementations must honor ctx and the Spec timeout; a probe must
// never block its caller indefinitely.
type Prober interface {
	Probe(ctx context.Context, spec Spec) (Result, error)
}

// ForMethod returns the prober for a configured probe_method value.
// "exec" selects the system-ping fallback; anything else gets ICMP.
func ForMethod(method string) Prober {
	if method == "exec" {
		return NewExecProber(nil)
	}
	return NewPingProber()
}
