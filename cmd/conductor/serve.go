package main

import (
	"context"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <flow-file>",
	Short: "Serve a flow over HTTP",
	Long: `Exposes the flow as an HTTP API: start runs, inspect them, post feedback to parked runs,
stream lifecycle events (SSE) and scrape Prometheus metrics at /metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		gate, _ := cmd.Flags().GetBool("gate")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.Serve(sigCtx, cli.ServeOptions{
			FlowPath:    args[0],
			WorkersPath: workersPath(cmd),
			Store:       storeOptions(cmd),
			Gate:        gate,
			Addr:        ":" + port,
		}, newEnv(cmd))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("gate", false, "Park runs after every transition until feedback is posted")
}
