package commands

import (
	"github.com/spf13/cobra"

	"github.com/lguibr/revue"
)

// logger returns the development logger when --verbose is set, otherwise
// a logger that discards everything.
func logger() revue.Logger {
	if verbose {
		return revue.NewDevelopmentLogger()
	}
	return revue.NoopLogger()
}

var (
	// workers is the size of the scheduler's worker pool (0 = GOMAXPROCS).
	workers int

	// verbose switches the diagnostics logger from noop to development.
	verbose bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "revue",
	Short: "revue actor-runtime demo and benchmark CLI",
	Long: `revue is a small actor-runtime core. This CLI runs the example
scenarios described by the runtime's own spec: a ping-pong sync-send demo,
a work-stealing benchmark, and a live scheduler dashboard.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().IntVar(
		&workers, "workers", 0,
		"Scheduler worker-pool size (default: GOMAXPROCS)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&verbose, "verbose", false,
		"Enable development-mode structured logging",
	)

	rootCmd.AddCommand(pingpongCmd)
	rootCmd.AddCommand(stealBenchCmd)
	rootCmd.AddCommand(topCmd)
}
