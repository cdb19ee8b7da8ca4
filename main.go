// uplinkd monitors the health of candidate uplink routes and keeps the
// kernel routing table pointed at the best healthy one.
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/uplinkd/cmd"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const defaultConfigFile = "/etc/uplinkd/uplinkd.hcl"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", defaultConfigFile, "Configuration file")
		startFlags.StringVar(configFile, "c", defaultConfigFile, "Configuration file (short)")
		debug := startFlags.Bool("debug", false, "Enable per-probe diagnostic output")
		metricsAddr := startFlags.String("metrics", "", "Serve prometheus metrics on this address (e.g. :9101)")
		startFlags.Parse(os.Args[2:])
		err = cmd.RunStart(*configFile, *debug, *metricsAddr)

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := checkFlags.String("config", defaultConfigFile, "Configuration file")
		checkFlags.StringVar(configFile, "c", defaultConfigFile, "Configuration file (short)")
		verbose := checkFlags.Bool("v", false, "Also run one probe round per route")
		checkFlags.Parse(os.Args[2:])
		err = cmd.RunCheck(*configFile, *verbose)

	case "version":
		fmt.Printf("uplinkd %s\n", Version)

	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: uplinkd <command> [flags]

Commands:
  start    Run the failover daemon in the foreground
  check    Validate the configuration (add -v for a probe round)
  version  Print the version

Run 'uplinkd <command> -h' for command flags.
`)
}
