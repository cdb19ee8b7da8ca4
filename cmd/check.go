package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/probe"
)

// RunCheck validates the configuration file and, when verbose, runs a
// single probe round per route so an operator can see link health
// without starting the daemon.
func RunCheck(configFile string, verbose bool) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("Configuration valid!\n")
	fmt.Printf("Routes: %d\n", len(cfg.Routes))
	fmt.Printf("Flap threshold: %d\n", cfg.Settings.FlapThreshold)
	fmt.Printf("Route protocol: %d\n", cfg.Settings.RouteProtocol)

	if !verbose {
		return nil
	}

	fmt.Println()
	prober := probe.ForMethod(cfg.Settings.ProbeMethod)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tTARGET\tSTATUS\tLOSS\tLATENCY")

	for _, r := range cfg.Routes {
		ctx, cancel := context.WithTimeout(context.Background(), r.Probe.Timeout())
		result, err := prober.Probe(ctx, probe.Spec{
			Route:     r.Name,
			Target:    r.Probe.Target,
			Interface: r.Interface,
			Count:     r.Probe.Count,
			Timeout:   r.Probe.Timeout(),
		})
		cancel()

		status := "UP"
		if err != nil || result.LossPercent >= r.Probe.MaxLoss ||
			(r.Probe.MaxLatency() > 0 && result.AvgRTT >= r.Probe.MaxLatency()) {
			status = "DOWN"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
			r.Name, r.Probe.Target, status, result.LossPercent,
			result.AvgRTT.Round(time.Millisecond))
	}
	return w.Flush()
}
