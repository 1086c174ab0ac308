// Copyright Contributors to the Opus project

// opus is the command line entry point for the Opus task orchestration
// library.
//
// Available commands:
//   - run:      Load task manifests and process them for a command/environment
//   - version:  Print version information
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "v0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "opus",
	Short: "Opus - declarative task orchestration",
	Long: `Opus processes declarative task manifests: it resolves their dependency
graph, filters them by the runtime processing scope (command and
environment) and dispatches each qualifying task, in dependency order, to
the registered task processor.

Examples:
  # Process manifests with the apply command in the default environment
  opus run --manifest tasks.yaml --command apply --environment default

  # Restrict processing to a subset of tasks with a CEL selector
  opus run --manifest tasks.yaml --selector 'labels["group"] == "core"'

  # Keep re-processing on a schedule
  opus run --manifest tasks.yaml --schedule "@every 1h"`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
