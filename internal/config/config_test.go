package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
log {
  level = "debug"
}

settings {
  flap_threshold  = 3
  cleanup_on_exit = true
}

route "wan_primary" {
  destination = "default"
  gateway     = "192.168.1.1"
  interface   = "eth0"
  metric      = 100
  priority    = 1

  probe {
    target         = "9.9.9.9"
    max_loss       = 20
    max_latency_ms = 300
    interval       = 5
  }
}

route "wan_backup" {
  destination = "default"
  interface   = "wwan0"
  metric      = 200
  priority    = 2

  probe {
    target = "1.1.1.1"
  }
}
`

func TestLoadHCL(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Settings.FlapThreshold)
	assert.True(t, cfg.Settings.CleanupOnExit)
	assert.Equal(t, DefaultRouteProtocol, cfg.Settings.RouteProtocol)

	require.Len(t, cfg.Routes, 2)
	primary := cfg.Routes[0]
	assert.Equal(t, "wan_primary", primary.Name)
	assert.Equal(t, "192.168.1.1", primary.Gateway)
	assert.Equal(t, 1, primary.Priority)
	assert.Equal(t, 20.0, primary.Probe.MaxLoss)

	// Defaults filled for the sparse probe block
	backup := cfg.Routes[1]
	assert.Equal(t, DefaultProbeCount, backup.Probe.Count)
	assert.Equal(t, DefaultIntervalSec, backup.Probe.IntervalSec)
	assert.Equal(t, DefaultMaxLatencyMs, backup.Probe.MaxLatencyMs)
}

func TestLoadJSON(t *testing.T) {
	data := []byte(`{
		"routes": [
			{
				"name": "wan1",
				"destination": "default",
				"interface": "eth0",
				"priority": 1,
				"probe": {"target": "9.9.9.9"}
			}
		]
	}`)

	cfg, err := LoadJSON(data)
	require.NoError(t, err)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "wan1", cfg.Routes[0].Name)
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := &Config{Routes: []RouteSpec{
		{Name: "wan", Destination: "default", Interface: "eth0", Probe: &ProbeRule{Target: "9.9.9.9"}},
		{Name: "wan", Destination: "default", Interface: "eth1", Probe: &ProbeRule{Target: "9.9.9.9"}},
	}}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		route RouteSpec
		want  string
	}{
		{
			name:  "missing interface",
			route: RouteSpec{Name: "r", Destination: "default", Probe: &ProbeRule{Target: "9.9.9.9"}},
			want:  "interface is required",
		},
		{
			name:  "bad destination",
			route: RouteSpec{Name: "r", Destination: "not-a-cidr", Interface: "eth0", Probe: &ProbeRule{Target: "9.9.9.9"}},
			want:  "invalid destination",
		},
		{
			name:  "bad gateway",
			route: RouteSpec{Name: "r", Destination: "default", Gateway: "nope", Interface: "eth0", Probe: &ProbeRule{Target: "9.9.9.9"}},
			want:  "invalid gateway",
		},
		{
			name:  "missing probe",
			route: RouteSpec{Name: "r", Destination: "default", Interface: "eth0"},
			want:  "probe block is required",
		},
		{
			name:  "missing probe target",
			route: RouteSpec{Name: "r", Destination: "default", Interface: "eth0", Probe: &ProbeRule{}},
			want:  "probe target is required",
		},
		{
			name: "loss out of range",
			route: RouteSpec{Name: "r", Destination: "default", Interface: "eth0",
				Probe: &ProbeRule{Target: "9.9.9.9", MaxLoss: 150}},
			want: "max_loss",
		},
		{
			// Validation alone must catch this: a zero interval would
			// otherwise reach time.NewTicker in the monitor.
			name: "zero interval without defaults",
			route: RouteSpec{Name: "r", Destination: "default", Interface: "eth0",
				Probe: &ProbeRule{Target: "9.9.9.9", MaxLoss: 20}},
			want: "interval must be positive",
		},
		{
			name: "negative interval",
			route: RouteSpec{Name: "r", Destination: "default", Interface: "eth0",
				Probe: &ProbeRule{Target: "9.9.9.9", MaxLoss: 20, IntervalSec: -1}},
			want: "interval must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Routes: []RouteSpec{tc.route}}
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateProbeMethod(t *testing.T) {
	route := RouteSpec{Name: "r", Destination: "default", Interface: "eth0",
		Probe: &ProbeRule{Target: "9.9.9.9"}}

	for _, method := range []string{"", "icmp", "exec"} {
		cfg := &Config{Settings: &Settings{ProbeMethod: method}, Routes: []RouteSpec{route}}
		cfg.ApplyDefaults()
		assert.NoError(t, cfg.Validate(), "method %q", method)
	}

	cfg := &Config{Settings: &Settings{ProbeMethod: "carrier-pigeon"}, Routes: []RouteSpec{route}}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_method")
}

func TestValidateRejectsEmptyConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())
}

func TestNormalizeDest(t *testing.T) {
	assert.Equal(t, "0.0.0.0/0", NormalizeDest("default"))
	assert.Equal(t, "10.0.0.0/8", NormalizeDest("10.0.0.0/8"))
}

func TestProbeRuleTimeoutDefaultsToInterval(t *testing.T) {
	p := &ProbeRule{IntervalSec: 5}
	assert.Equal(t, p.Interval(), p.Timeout())

	p.TimeoutSec = 2
	assert.NotEqual(t, p.Interval(), p.Timeout())
}
