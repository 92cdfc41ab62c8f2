package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skein",
	Short: "Parallel tool-call planner and executor",
	Long: `Skein turns a natural-language request into a plan of tool calls,
executes the plan with maximal safe parallelism, and loops
plan -> execute -> join until it has an answer.

The planner emits a numbered list of tool calls where later calls can
reference earlier results ($1, $2, ...). Independent calls run
concurrently; dependent calls wait only for the results they name.
After each round a joiner decides whether the gathered results answer
the request or another planning round is needed.

Core capabilities:
- Plans a dependency graph of tool calls from one request
- Runs independent calls in parallel under a worker limit
- Feeds results of one call into the arguments of another
- Replans with accumulated results when the first pass falls short
- Records every run in a local history database`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
