package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingProber probes with ICMP echoes via pro-bing.
type PingProber struct {
	// Privileged switches to raw ICMP sockets. Required for
	// SO_BINDTODEVICE interface binding; unprivileged UDP ping works
	// without CAP_NET_RAW but cannot bind an interface.
	Privileged bool

	// Interval between echoes within one invocation.
	Interval time.Duration
}

// NewPingProber returns a prober suitable for running as root, which is
// the normal deployment since the daemon also mutates the routing table.
func NewPingProber() *PingProber {
	return &PingProber{
		Privileged: true,
		Interval:   500 * time.Millisecond,
	}
}

// Probe sends spec.Count echoes to spec.Target within spec.Timeout.
// A target that never answers yields a 100% loss sample, not an error;
// errors indicate the probe could not be issued at all.
func (p *PingProber) Probe(ctx context.Context, spec Spec) (Result, error) {
	pinger, err := probing.NewPinger(spec.Target)
	if err != nil {
		return Unreachable(spec.Count), fmt.Errorf("failed to create pinger for %s: %w", spec.Target, err)
	}

	pinger.Count = spec.Count
	pinger.Timeout = spec.Timeout
	if p.Interval > 0 {
		pinger.Interval = p.Interval
	}
	pinger.SetPrivileged(p.Privileged)
	if spec.Interface != "" {
		pinger.InterfaceName = spec.Interface
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		return Unreachable(spec.Count), err
	}

	stats := pinger.Statistics()
	return Result{
		LossPercent: stats.PacketLoss,
		AvgRTT:      stats.AvgRtt,
		Sent:        stats.PacketsSent,
		Received:    stats.PacketsRecv,
	}, nil
}
