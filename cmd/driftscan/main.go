// Package main provides the entry point for the driftscan comparison tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TFMV/driftscan/pkg/core"
	"github.com/TFMV/driftscan/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftscan",
		Short: "driftscan compares two document collections in a remote store",
		Long: `driftscan compares two large document collections held in a remote
searchable store and reports, per document identifier, whether the document
is missing from one side or structurally different between sides.

It is meant for operators validating data migrations or replication between
two collections sharing an identifier space.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of driftscan",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("driftscan %s (built %s)\n", version.Version, version.BuildDate)
		},
	})

	rootCmd.AddCommand(newCompareCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(core.KindOf(err).ExitCode())
	}
}
