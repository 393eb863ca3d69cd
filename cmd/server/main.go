package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resights/internal/registry"
)

// main loads .env, runs the selected subcommand and maps any failure to a
// "kind: message" line on stderr with exit status 1.
func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, registry.Summary(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "resights",
		Short: "Danish property registry gateway",
		Long: `Query the Resights property registry: flatten BBR units and buildings for a
BFE number into a table, fetch valuations, or call any API endpoint.

Run as an HTTP API (serve), as an MCP tool server on stdio (mcp), or one-shot
from the shell. Configuration is read from the environment and an optional .env file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"log level: debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(&flags),
		newMCPCmd(&flags),
		newTableCmd(&flags),
		newValuationsCmd(&flags),
		newCallCmd(&flags),
		newHealthCmd(&flags),
		newTokenCmd(),
	)
	return root
}
