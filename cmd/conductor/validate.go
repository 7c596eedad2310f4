package main

import (
	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>",
	Short: "Check the flow for consistency",
	Long:  `Compiles the flow against the workers file, reporting dangling transitions, unknown workers and unreachable states.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(args[0], workersPath(cmd), cmd.OutOrStdout(), newLogger(cmd))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
