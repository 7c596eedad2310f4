package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of conductor",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "conductor version %s\n", strings.TrimSpace(conductor.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
