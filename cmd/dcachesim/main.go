// Package main provides the dcachesim command-line tool. It runs random
// traffic sweeps through a cache model and records the traces.
package main

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use: "dcachesim",
	Short: "dcachesim runs traffic through a data-cache model and " +
		"records the traces.",
	Long: `dcachesim builds a data-cache model (cache, miss buffer, ` +
		`write buffer, and replay table), drives it with randomized ` +
		`load/store traffic, and records every admission decision, ` +
		`drain, and refill to a trace database.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
