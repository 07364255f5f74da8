// Package cmd provides the command-line interface of saturnsim.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the base command with all its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "saturnsim",
		Short: "saturnsim runs the timing model of the Saturn machine.",
		Long: `saturnsim runs the timing model of the Saturn machine. ` +
			`Every flag can also be set through a SATURNSIM_ environment ` +
			`variable, or through a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(cmd)
		},
	}

	root.PersistentFlags().String("env-file", "",
		"File to load environment defaults from. Defaults to .env if present.")
	root.PersistentFlags().String("log-level", "info",
		"Log level: trace, debug, info, warn, error or disabled.")

	root.AddCommand(newRunCmd())

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		return 1
	}

	return 0
}
