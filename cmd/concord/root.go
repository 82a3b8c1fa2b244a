package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "concord",
	Short: "Concord - governed message bus for multi-agent systems",
	Long: `Concord is a governed message bus for multi-agent systems.

Every message crossing the bus passes through the governance pipeline:
  - Constitutional hash validation in constant time
  - Role separation between executive, legislative, and judicial agents
  - Policy evaluation with impact scoring
  - Deliberation routing for high-impact messages
  - Append-only audit trail and per-tenant usage metering

The runtime guards its external dependencies with circuit breakers,
aggregates them into a system health score, schedules recovery for
failed services, and can inject controlled faults for resilience
testing.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
