// Command stmrun is a thin host for package stm's end-to-end scenarios: it
// loads a config file, builds a reference heap, runs one of the named
// demonstration scenarios, and reports the STM's aggregate commit/abort
// counters on exit.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stmrun",
	Short: "Run STM end-to-end scenarios against a reference heap",
	Long:  "stmrun drives package stm's Pool against a toy managed-object heap, running one of a set of concurrency demonstration scenarios.",
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
