package main

import (
	"context"

	"github.com/spf13/cobra"

	mcptransport "resights/internal/transport/mcp"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the registry tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol; everything else goes to stderr.
			a, err := newApp(cmd.Context(), *flags, appOptions{logWriter: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			srv, err := mcptransport.New(a.service, a.logger)
			if err != nil {
				return configurationError(err)
			}
			return srv.ServeStdio()
		},
	}
}
