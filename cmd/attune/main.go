// Package main is the attune server CLI.
//
// Start the server:
//
//	attune serve --config attune.yaml
//
// Configuration values may reference environment variables with ${VAR}
// syntax; provider API keys are typically supplied that way.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "attune",
		Short:         "Attune conversational AI server",
		Long:          "Attune is a multi-user conversational AI server with per-user encrypted memory,\nskill training, and multi-provider LLM failover.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("attune %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
