package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/events"
	"grimm.is/uplinkd/internal/health"
	"grimm.is/uplinkd/internal/probe"
)

// fakeProber returns scripted results and counts invocations.
type fakeProber struct {
	mu      sync.Mutex
	results []probe.Result
	errs    []error
	calls   int
}

func (f *fakeProber) Probe(ctx context.Context, spec probe.Spec) (probe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRouteSpec() config.RouteSpec {
	return config.RouteSpec{
		Name:      "wan_primary",
		Interface: "eth0",
		Probe: &config.ProbeRule{
			Target:       "9.9.9.9",
			MaxLoss:      20,
			MaxLatencyMs: 300,
			IntervalSec:  1,
			Count:        3,
		},
	}
}

func newTestMonitor(spec config.RouteSpec, p probe.Prober, flap int,
	transitions chan health.Transition, hub *events.Hub) *Monitor {
	ev := health.NewEvaluator(spec.Name, health.Thresholds{
		MaxLoss:    spec.Probe.MaxLoss,
		MaxLatency: spec.Probe.MaxLatency(),
	}, flap, nil)
	return New(spec, p, ev, transitions, hub, nil, false)
}

func TestMonitorDeliversInitialTransition(t *testing.T) {
	prober := &fakeProber{results: []probe.Result{
		{LossPercent: 0, AvgRTT: 12 * time.Millisecond, Sent: 3, Received: 3},
	}}
	transitions := make(chan health.Transition, 8)
	m := newTestMonitor(testRouteSpec(), prober, 2, transitions, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case tr := <-transitions:
		assert.Equal(t, "wan_primary", tr.Route)
		assert.Equal(t, health.VerdictUp, tr.To)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial transition")
	}
}

func TestMonitorProbeErrorIsDownSample(t *testing.T) {
	prober := &fakeProber{
		results: []probe.Result{{}},
		errs:    []error{errors.New("sendto: network is unreachable")},
	}
	transitions := make(chan health.Transition, 8)
	m := newTestMonitor(testRouteSpec(), prober, 2, transitions, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case tr := <-transitions:
		assert.Equal(t, health.VerdictDown, tr.To)
		assert.Equal(t, 100.0, tr.Sample.LossPercent)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition for failed probe")
	}
}

func TestMonitorKeepsSchedulingAfterFailures(t *testing.T) {
	prober := &fakeProber{
		results: []probe.Result{{}},
		errs:    []error{errors.New("boom")},
	}
	transitions := make(chan health.Transition, 8)
	m := newTestMonitor(testRouteSpec(), prober, 2, transitions, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	// Initial check plus at least two ticks within 2.5s at a 1s interval.
	assert.GreaterOrEqual(t, prober.callCount(), 3)
}

func TestMonitorEmitsLinkEventsOnTransition(t *testing.T) {
	prober := &fakeProber{results: []probe.Result{
		{LossPercent: 0, AvgRTT: 12 * time.Millisecond, Sent: 3, Received: 3}, // up
		{LossPercent: 100, Sent: 3},                                           // flap 1
		{LossPercent: 100, Sent: 3},                                           // flap 2 -> down
	}}
	hub := events.NewHub()
	sub := hub.Subscribe(8, events.EventLinkUp, events.EventLinkDown)
	transitions := make(chan health.Transition, 8)
	m := newTestMonitor(testRouteSpec(), prober, 2, transitions, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitEvent := func() events.Event {
		select {
		case e := <-sub:
			return e
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for link event")
			return events.Event{}
		}
	}

	require.Equal(t, events.EventLinkUp, waitEvent().Type)
	down := waitEvent()
	require.Equal(t, events.EventLinkDown, down.Type)
	data := down.Data.(events.LinkHealthData)
	assert.Equal(t, 100.0, data.LossPercent)
}
