// Package events provides the pub/sub event bus for uplinkd.
// All observable state changes (link health, route mutations, probe
// diagnostics) flow through this hub; sinks decide formatting and
// persistence.
package events

import "time"

// EventType identifies the category of event.
type EventType string

// Event types for all daemon sources.
const (
	// Link health events
	EventLinkUp   EventType = "link.up"
	EventLinkDown EventType = "link.down"

	// Kernel route mutations
	EventRouteAdded   EventType = "route.added"
	EventRouteRemoved EventType = "route.removed"
	EventRouteError   EventType = "route.error"

	// Health warnings (link still up, but degraded)
	EventHealthWarning EventType = "health.warning"
	EventHealthClear   EventType = "health.clear"

	// Per-probe diagnostics (debug mode only)
	EventProbeResult EventType = "probe.result"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // Component that emitted: "monitor", "applier", etc.
	Data      interface{} `json:"data"`   // Type-specific payload
}

// LinkHealthData is the payload for EventLinkUp/EventLinkDown.
type LinkHealthData struct {
	Route       string  `json:"route"`
	Interface   string  `json:"interface"`
	LossPercent float64 `json:"loss_percent"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
}

// RouteChangeData is the payload for EventRouteAdded/EventRouteRemoved/EventRouteError.
type RouteChangeData struct {
	Route       string `json:"route"`
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	Interface   string `json:"interface"`
	Metric      int    `json:"metric,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HealthWarningData is the payload for EventHealthWarning/EventHealthClear.
type HealthWarningData struct {
	Route       string  `json:"route"`
	LossPercent float64 `json:"loss_percent,omitempty"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// ProbeResultData is the payload for EventProbeResult.
type ProbeResultData struct {
	Route       string  `json:"route"`
	Target      string  `json:"target"`
	LossPercent float64 `json:"loss_percent"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
	Error       string  `json:"error,omitempty"`
}
