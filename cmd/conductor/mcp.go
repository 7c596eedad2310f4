package main

import (
	"context"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <flow-file>",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the flow as MCP tools (run_flow, resume_run, get_run, get_graph) and, when the
workers file declares a decider, the delegate tool.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		gate, _ := cmd.Flags().GetBool("gate")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.ServeMCP(sigCtx, cli.ServeOptions{
			FlowPath:    args[0],
			WorkersPath: workersPath(cmd),
			Store:       storeOptions(cmd),
			Gate:        gate,
			Transport:   transport,
			Port:        port,
		}, newEnv(cmd))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().Bool("gate", false, "Park runs after every transition until resume_run is called")
}
