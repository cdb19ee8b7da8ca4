// Package cmd holds the subcommand entrypoints for the uplinkd binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/daemon"
	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
)

// RunStart runs the failover daemon in the foreground until SIGINT or
// SIGTERM. Supervision (restart on crash, backgrounding) belongs to the
// init system, not to us.
func RunStart(configFile string, debug bool, metricsAddr string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, JSON: cfg.Log.JSON})
	logging.SetDefault(logger)

	logger.Info("configuration loaded", "file", configFile, "routes", len(cfg.Routes))

	reg := metrics.Get()
	if metricsAddr != "" {
		go func() {
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := metrics.Serve(metricsAddr); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	d, err := daemon.New(daemon.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: reg,
		Debug:   debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
