// Package health derives UP/DOWN verdicts for routes from probe
// samples. Evaluation is pure relative to an injected clock, so tests
// never need timers or real probes.
package health

import (
	"time"

	"grimm.is/uplinkd/internal/clock"
	"grimm.is/uplinkd/internal/probe"
)

// Verdict is the binary health classification for a route.
type Verdict string

const (
	VerdictUp   Verdict = "up"
	VerdictDown Verdict = "down"
)

// Thresholds are the limits a sample is judged against.
// A sample at or above either limit counts as a failure beat.
type Thresholds struct {
	MaxLoss    float64 // percent
	MaxLatency time.Duration
}

// SampleFails reports whether one sample crosses either threshold.
func (t Thresholds) SampleFails(s probe.Result) bool {
	if s.LossPercent >= t.MaxLoss {
		return true
	}
	if t.MaxLatency > 0 && s.AvgRTT >= t.MaxLatency {
		return true
	}
	return false
}

// State is a read-only snapshot of a route's health.
type State struct {
	Route          string
	Verdict        Verdict
	Failures       int // consecutive failing samples
	Successes      int // consecutive passing samples
	LastTransition time.Time
	LastSample     probe.Result
}

// Up reports whether the snapshot verdict is UP.
func (s State) Up() bool {
	return s.Verdict == VerdictUp
}

// Transition describes a confirmed verdict change.
type Transition struct {
	Route  string
	From   Verdict
	To     Verdict
	At     time.Time
	Sample probe.Result
}

// Evaluator owns the health state for a single route.
// It is not safe for concurrent use; each RouteMonitor drives its own.
type Evaluator struct {
	route         string
	thresholds    Thresholds
	flapThreshold int
	clk           clock.Clock

	state       State
	initialized bool
	warned      bool
}

// NewEvaluator creates an evaluator. flapThreshold is the number of
// consecutive confirming samples required before the verdict flips;
// values below 1 are clamped to 1. A nil clock selects the real one.
func NewEvaluator(route string, thresholds Thresholds, flapThreshold int, clk clock.Clock) *Evaluator {
	if flapThreshold < 1 {
		flapThreshold = 1
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Evaluator{
		route:         route,
		thresholds:    thresholds,
		flapThreshold: flapThreshold,
		clk:           clk,
		state: State{
			Route:   route,
			Verdict: VerdictDown,
		},
	}
}

// Evaluate feeds one sample into the state machine and reports whether
// the verdict changed. The first sample sets the verdict directly so
// startup does not wait out the hysteresis window.
func (e *Evaluator) Evaluate(sample probe.Result) (Transition, bool) {
	now := e.clk.Now()
	e.state.LastSample = sample
	fails := e.thresholds.SampleFails(sample)

	if fails {
		e.state.Successes = 0
		e.state.Failures++
	} else {
		e.state.Failures = 0
		e.state.Successes++
	}

	if !e.initialized {
		e.initialized = true
		from := e.state.Verdict
		if fails {
			e.state.Verdict = VerdictDown
		} else {
			e.state.Verdict = VerdictUp
		}
		e.state.LastTransition = now
		return Transition{Route: e.route, From: from, To: e.state.Verdict, At: now, Sample: sample}, true
	}

	switch {
	case e.state.Verdict == VerdictUp && fails && e.state.Failures >= e.flapThreshold:
		e.state.Verdict = VerdictDown
		e.state.LastTransition = now
		return Transition{Route: e.route, From: VerdictUp, To: VerdictDown, At: now, Sample: sample}, true
	case e.state.Verdict == VerdictDown && !fails && e.state.Successes >= e.flapThreshold:
		e.state.Verdict = VerdictUp
		e.state.LastTransition = now
		return Transition{Route: e.route, From: VerdictDown, To: VerdictUp, At: now, Sample: sample}, true
	}
	return Transition{}, false
}

// State returns a snapshot of the current health state.
func (e *Evaluator) State() State {
	return e.state
}

// Warning classifies a passing sample that is close to its limits:
// any loss at all, or latency beyond 80% of the allowance. The latch
// dedupes repeats; raised reports a new warning, cleared reports
// recovery after one.
func (e *Evaluator) Warning(sample probe.Result) (raised, cleared bool) {
	if e.thresholds.SampleFails(sample) || e.state.Verdict != VerdictUp {
		e.warned = false
		return false, false
	}

	degraded := sample.LossPercent > 0
	if e.thresholds.MaxLatency > 0 && sample.AvgRTT > e.thresholds.MaxLatency*8/10 {
		degraded = true
	}

	switch {
	case degraded && !e.warned:
		e.warned = true
		return true, false
	case !degraded && e.warned:
		e.warned = false
		return false, true
	}
	return false, false
}
