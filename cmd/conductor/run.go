package main

import (
	"context"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/aretw0/conductor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <flow-file>",
	Short: "Run a flow file",
	Long: `Compiles the flow file (.yaml, .yml, .json or .hcl) against the workers file and runs it
from its entry state. With --gate the run pauses after every transition: on a terminal it
prompts for an instruction, otherwise it parks and prints the run ID to resume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{
			FlowPath:    args[0],
			WorkersPath: workersPath(cmd),
			Store:       storeOptions(cmd),
		}
		opts.Context, _ = cmd.Flags().GetString("context")
		opts.Resume, _ = cmd.Flags().GetString("resume")
		opts.Instruction, _ = cmd.Flags().GetString("instruction")
		opts.Exit, _ = cmd.Flags().GetBool("exit")
		opts.Gate, _ = cmd.Flags().GetBool("gate")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		env := newEnv(cmd)
		if env.Interactive && !opts.JSON {
			tui.PrintBanner(env.Stdout)
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.Run(sigCtx, opts, env)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	resumeFlags(runCmd)
}
