// Package config defines the daemon configuration model and its
// HCL/JSON loaders. The core treats a loaded Config as immutable for
// the lifetime of the run; changes require a restart.
package config

import (
	"fmt"
	"net"
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultFlapThreshold = 2
	DefaultRouteProtocol = 201 // private value in the kernel rtm_protocol space
	DefaultProbeCount    = 3
	DefaultIntervalSec   = 5
	DefaultMaxLatencyMs  = 1000
	DefaultMaxLoss       = 20
)

// Config is the root configuration document.
type Config struct {
	Log      *LogConfig  `hcl:"log,block" json:"log,omitempty"`
	Settings *Settings   `hcl:"settings,block" json:"settings,omitempty"`
	Routes   []RouteSpec `hcl:"route,block" json:"routes"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `hcl:"level,optional" json:"level,omitempty"` // debug, info, warn, error
	JSON  bool   `hcl:"json,optional" json:"json,omitempty"`
}

// Settings holds daemon-wide tunables.
type Settings struct {
	// FlapThreshold is the number of consecutive confirming samples
	// required before a verdict flips. 1 disables hysteresis.
	FlapThreshold int `hcl:"flap_threshold,optional" json:"flap_threshold,omitempty"`

	// CleanupOnExit removes all managed kernel routes at shutdown.
	// Default false: routes remain until the next run takes over.
	CleanupOnExit bool `hcl:"cleanup_on_exit,optional" json:"cleanup_on_exit,omitempty"`

	// RouteProtocol tags managed kernel entries so they can be told
	// apart from routes installed by DHCP or other daemons.
	RouteProtocol int `hcl:"route_protocol,optional" json:"route_protocol,omitempty"`

	// ProbeMethod selects the probe primitive: "icmp" (raw sockets via
	// pro-bing, the default) or "exec" (system ping, for environments
	// without CAP_NET_RAW).
	ProbeMethod string `hcl:"probe_method,optional" json:"probe_method,omitempty"`
}

// RouteSpec is one administrator-configured candidate route.
type RouteSpec struct {
	Name        string     `hcl:"name,label" json:"name"`
	Destination string     `hcl:"destination" json:"destination"` // CIDR, or "default"
	Gateway     string     `hcl:"gateway,optional" json:"gateway,omitempty"`
	Interface   string     `hcl:"interface" json:"interface"`
	Metric      int        `hcl:"metric,optional" json:"metric,omitempty"`     // kernel preference, lower wins
	Priority    int        `hcl:"priority,optional" json:"priority,omitempty"` // arbitration rank, lower wins
	Probe       *ProbeRule `hcl:"probe,block" json:"probe,omitempty"`
}

// ProbeRule configures health probing for one route.
type ProbeRule struct {
	Target       string  `hcl:"target" json:"target"`
	MaxLoss      float64 `hcl:"max_loss,optional" json:"max_loss,omitempty"`             // percent, 0-100
	MaxLatencyMs int     `hcl:"max_latency_ms,optional" json:"max_latency_ms,omitempty"` // milliseconds
	IntervalSec  int     `hcl:"interval,optional" json:"interval,omitempty"`             // seconds between checks
	Count        int     `hcl:"count,optional" json:"count,omitempty"`                   // echoes per check
	TimeoutSec   int     `hcl:"timeout,optional" json:"timeout,omitempty"`               // hard bound per check
}

// Interval returns the check interval as a duration.
func (p *ProbeRule) Interval() time.Duration {
	return time.Duration(p.IntervalSec) * time.Second
}

// Timeout returns the per-check hard timeout. When unset it defaults to
// the check interval so a hung probe can never overlap the next tick.
func (p *ProbeRule) Timeout() time.Duration {
	if p.TimeoutSec > 0 {
		return time.Duration(p.TimeoutSec) * time.Second
	}
	return p.Interval()
}

// MaxLatency returns the latency threshold as a duration.
func (p *ProbeRule) MaxLatency() time.Duration {
	return time.Duration(p.MaxLatencyMs) * time.Millisecond
}

// NormalizeDest maps the "default" shorthand onto its CIDR form so
// comparisons against kernel state are stable.
func NormalizeDest(dest string) string {
	if dest == "default" {
		return "0.0.0.0/0"
	}
	return dest
}

// ApplyDefaults fills unset optional fields in place.
func (c *Config) ApplyDefaults() {
	if c.Log == nil {
		c.Log = &LogConfig{Level: "info"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Settings == nil {
		c.Settings = &Settings{}
	}
	if c.Settings.FlapThreshold <= 0 {
		c.Settings.FlapThreshold = DefaultFlapThreshold
	}
	if c.Settings.RouteProtocol <= 0 {
		c.Settings.RouteProtocol = DefaultRouteProtocol
	}
	for i := range c.Routes {
		r := &c.Routes[i]
		if r.Probe == nil {
			continue
		}
		if r.Probe.Count <= 0 {
			r.Probe.Count = DefaultProbeCount
		}
		if r.Probe.IntervalSec <= 0 {
			r.Probe.IntervalSec = DefaultIntervalSec
		}
		if r.Probe.MaxLatencyMs <= 0 {
			r.Probe.MaxLatencyMs = DefaultMaxLatencyMs
		}
		if r.Probe.MaxLoss <= 0 {
			r.Probe.MaxLoss = DefaultMaxLoss
		}
	}
}

// Validate checks the configuration for fatal errors. It must pass
// before any monitor is started.
func (c *Config) Validate() error {
	if len(c.Routes) == 0 {
		return fmt.Errorf("no routes configured")
	}

	if c.Settings != nil {
		switch c.Settings.ProbeMethod {
		case "", "icmp", "exec":
		default:
			return fmt.Errorf("probe_method must be \"icmp\" or \"exec\", got %q", c.Settings.ProbeMethod)
		}
	}

	seen := make(map[string]bool, len(c.Routes))
	for i := range c.Routes {
		r := &c.Routes[i]
		if r.Name == "" {
			return fmt.Errorf("route %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("route %q: duplicate name", r.Name)
		}
		seen[r.Name] = true

		if r.Interface == "" {
			return fmt.Errorf("route %q: interface is required", r.Name)
		}
		if r.Destination == "" {
			return fmt.Errorf("route %q: destination is required", r.Name)
		}
		if _, _, err := net.ParseCIDR(NormalizeDest(r.Destination)); err != nil {
			return fmt.Errorf("route %q: invalid destination %q: %w", r.Name, r.Destination, err)
		}
		if r.Gateway != "" && net.ParseIP(r.Gateway) == nil {
			return fmt.Errorf("route %q: invalid gateway %q", r.Name, r.Gateway)
		}
		if r.Metric < 0 {
			return fmt.Errorf("route %q: metric must not be negative", r.Name)
		}

		if r.Probe == nil {
			return fmt.Errorf("route %q: probe block is required", r.Name)
		}
		if r.Probe.Target == "" {
			return fmt.Errorf("route %q: probe target is required", r.Name)
		}
		if r.Probe.MaxLoss < 0 || r.Probe.MaxLoss > 100 {
			return fmt.Errorf("route %q: max_loss must be within 0-100, got %v", r.Name, r.Probe.MaxLoss)
		}
		if r.Probe.IntervalSec <= 0 {
			return fmt.Errorf("route %q: probe interval must be positive", r.Name)
		}
	}
	return nil
}

// RouteByName returns the spec with the given name, or nil.
func (c *Config) RouteByName(name string) *RouteSpec {
	for i := range c.Routes {
		if c.Routes[i].Name == name {
			return &c.Routes[i]
		}
	}
	return nil
}
