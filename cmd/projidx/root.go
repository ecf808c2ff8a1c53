package main

import (
	"github.com/spf13/cobra"
)

type globalFlags struct {
	backend  string
	dataDir  string
	logLevel string
	format   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "projidx",
		Short: "Manage projects and versioned resources in the project index",
		Long: `projidx reads and writes the project index: projects listed by state,
user assignments and versioned resources with locks.

The store backend and event publishers are configured with PROJIDX_*
environment variables. Flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(flags.format)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "Store backend: memory, bolt, dynamodb or postgres")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Directory for the bolt file and resource content")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&flags.format, "format", "table", "Output format: table or json")

	rootCmd.AddCommand(newProjectCmd(flags))
	rootCmd.AddCommand(newResourceCmd(flags))

	return rootCmd
}
