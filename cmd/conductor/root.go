package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/aretw0/conductor/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// envEncryptionKey holds a base64 AES-256 key; when set, stored runs are encrypted.
const envEncryptionKey = "CONDUCTOR_ENCRYPTION_KEY"

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor runs state-machine workflows and delegation loops",
	Long: `Conductor executes flows declared in YAML or HCL: named states, ordered steps and
conditional transitions over a shared context. It can also let a decision maker delegate
work to registered workers until it produces an answer. Runs may pause for human feedback
and be resumed later.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("workers", "workers.yaml", "Workers file (YAML or JSON)")
	rootCmd.PersistentFlags().String("redis", "", "Redis URL for run persistence, e.g. redis://localhost:6379/0")
	rootCmd.PersistentFlags().Duration("ttl", 0, "Expire stored runs after this duration (redis only)")
	rootCmd.PersistentFlags().StringSlice("redact", nil, "Mask stored context values whose key matches these patterns")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.NewWithFormat(logging.ParseLevel(level), format, os.Stderr)
}

func newEnv(cmd *cobra.Command) cli.Env {
	width := 100
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return cli.Env{
		Stdin:       os.Stdin,
		Stdout:      cmd.OutOrStdout(),
		Logger:      newLogger(cmd),
		Interactive: interactive,
		Width:       width,
	}
}

func storeOptions(cmd *cobra.Command) cli.StoreOptions {
	url, _ := cmd.Flags().GetString("redis")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	redact, _ := cmd.Flags().GetStringSlice("redact")
	return cli.StoreOptions{
		RedisURL:      url,
		TTL:           ttl,
		EncryptionKey: os.Getenv(envEncryptionKey),
		Redact:        redact,
	}
}

func workersPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("workers")
	return path
}

// resumeFlags are shared by run and delegate.
func resumeFlags(cmd *cobra.Command) {
	cmd.Flags().String("context", "", "Initial context as a JSON object")
	cmd.Flags().String("resume", "", "Resume the parked run with this ID (requires --redis)")
	cmd.Flags().String("instruction", "", "Instruction injected when resuming")
	cmd.Flags().Bool("exit", false, "Stop the resumed run instead of continuing")
	cmd.Flags().Bool("gate", false, "Pause for feedback after every transition or round")
	cmd.Flags().Bool("json", false, "Print the run as JSON")
}
