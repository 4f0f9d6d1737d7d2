// Package cmd provides the CLI commands for endnote-mcp.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	"github.com/gokmengokhan/endnote-mcp/internal/logging"
	"github.com/gokmengokhan/endnote-mcp/pkg/version"
)

// Persistent flags shared by all subcommands.
var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the endnote-mcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endnote-mcp",
		Short: "Searchable index and MCP server for an EndNote library",
		Long: `endnote-mcp indexes an EndNote XML export and its PDF attachments
into a local hybrid search index (FTS + embeddings), and serves the
library to AI assistants over the Model Context Protocol.

Typical workflow:
  endnote-mcp init --xml ~/library.xml --pdf-dir ~/pdfs
  endnote-mcp index
  endnote-mcp serve`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("endnote-mcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: "+config.DefaultPath()+")")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to the log file")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCiteCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the rotating log file. Stdout stays clean:
// it carries command output, and under `serve` the MCP protocol itself.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// A read-only home directory should not block the command.
		slog.Warn("file logging disabled", slog.String("error", err.Error()))
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
