package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/gokmengokhan/endnote-mcp/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the library over the Model Context Protocol (stdio)",
		Long: `Start the MCP server on stdin/stdout for AI assistant clients.

Stdout carries the protocol, so all diagnostics go to the log file.
Run 'endnote-mcp index' first; an empty index serves empty results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, cleanup, err := openComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := mcpserver.NewServer(c.cfg, c.records, c.newEngine(), c.vectors, c.embedder, nil)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
