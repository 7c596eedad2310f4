package main

import (
	"context"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var delegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Pursue a goal by delegating to workers",
	Long: `Runs the delegation loop: the decider declared in the workers file picks a worker and a
task each round, until it gives a final answer or the round limit is reached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.DelegateOptions{
			WorkersPath: workersPath(cmd),
			Store:       storeOptions(cmd),
		}
		opts.Goal, _ = cmd.Flags().GetString("goal")
		opts.MaxRounds, _ = cmd.Flags().GetInt("max-rounds")
		opts.Context, _ = cmd.Flags().GetString("context")
		opts.Resume, _ = cmd.Flags().GetString("resume")
		opts.Instruction, _ = cmd.Flags().GetString("instruction")
		opts.Exit, _ = cmd.Flags().GetBool("exit")
		opts.Gate, _ = cmd.Flags().GetBool("gate")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.Delegate(sigCtx, opts, newEnv(cmd))
	},
}

func init() {
	rootCmd.AddCommand(delegateCmd)
	resumeFlags(delegateCmd)
	delegateCmd.Flags().String("goal", "", "What the run should achieve")
	delegateCmd.Flags().Int("max-rounds", 0, "Round limit (0 keeps the default)")
}
