package daemon

import (
	"context"

	"grimm.is/uplinkd/internal/events"
	"grimm.is/uplinkd/internal/logging"
)

// logSink drains the event hub into the structured log. Route mutations
// are logged by the applier at the point of mutation; the sink handles
// the monitor-side events.
func logSink(ctx context.Context, hub *events.Hub, logger *logging.Logger) {
	ch := hub.Subscribe(256,
		events.EventLinkUp, events.EventLinkDown,
		events.EventHealthWarning, events.EventHealthClear,
		events.EventProbeResult)
	defer hub.Unsubscribe(ch)

	log := logger.WithComponent("events")
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			switch e.Type {
			case events.EventLinkUp:
				data := e.Data.(events.LinkHealthData)
				log.Info("interface up", "route", data.Route, "interface", data.Interface,
					"loss", data.LossPercent, "latency_ms", data.LatencyMs)
			case events.EventLinkDown:
				data := e.Data.(events.LinkHealthData)
				log.Warn("interface down", "route", data.Route, "interface", data.Interface,
					"loss", data.LossPercent)
			case events.EventHealthWarning:
				data := e.Data.(events.HealthWarningData)
				log.Warn("degraded link", "route", data.Route,
					"loss", data.LossPercent, "latency_ms", data.LatencyMs)
			case events.EventHealthClear:
				data := e.Data.(events.HealthWarningData)
				log.Info("link recovered", "route", data.Route)
			case events.EventProbeResult:
				data := e.Data.(events.ProbeResultData)
				log.Debug("probe", "route", data.Route, "target", data.Target,
					"loss", data.LossPercent, "latency_ms", data.LatencyMs, "error", data.Error)
			}
		}
	}
}
