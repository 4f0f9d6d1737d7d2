package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/extract"
	"github.com/gokmengokhan/endnote-mcp/internal/index"
	"github.com/gokmengokhan/endnote-mcp/internal/ui"
	"github.com/gokmengokhan/endnote-mcp/internal/watcher"
)

func newIndexCmd() *cobra.Command {
	var full bool
	var metadataOnly bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Import the EndNote export and update the search index",
		Long: `Import the configured EndNote XML export, then update the record
store, lexical index, PDF page text, and embeddings. Unchanged
records are skipped; only inserted, updated, and removed records
are reprocessed.

Examples:
  endnote-mcp index
  endnote-mcp index --full
  endnote-mcp index --metadata-only
  endnote-mcp index --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if full && metadataOnly {
				return fmt.Errorf("--full and --metadata-only are mutually exclusive")
			}
			mode := index.ModeIncremental
			if full {
				mode = index.ModeFull
			}
			if metadataOnly {
				mode = index.ModeMetadataOnly
			}
			return runIndex(cmd.Context(), cmd, mode, watch)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Discard derived state and rebuild everything")
	cmd.Flags().BoolVar(&metadataOnly, "metadata-only", false, "Skip PDF extraction, index metadata only")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and re-index when the export file changes")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, mode index.Mode, watch bool) error {
	c, cleanup, err := openComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	coordinator := index.NewCoordinator(
		c.cfg,
		c.records,
		c.lexical,
		c.vectors,
		extract.NewPDFExtractor(),
		extract.NewResolver(c.cfg.Library.PDFDir),
		c.embedder,
		slog.Default(),
	)

	result, err := coordinator.Run(ctx, mode)
	if err != nil {
		return err
	}
	printer.IndexResult(result)

	if !watch {
		return nil
	}
	return watchAndReindex(ctx, cmd, c, coordinator, printer)
}

// watchAndReindex re-runs incremental indexing whenever the export file
// settles after a change. Runs until interrupted.
func watchAndReindex(ctx context.Context, cmd *cobra.Command, c *components, coordinator *index.Coordinator, printer *ui.Printer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.NewExportWatcher(c.cfg.Library.XMLPath, watcher.DefaultDebounceWindow, slog.Default())
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl-C to stop)\n", c.cfg.Library.XMLPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			slog.Warn("watch error", slog.String("error", err.Error()))
		case <-w.Changes():
			result, err := coordinator.Run(ctx, index.ModeIncremental)
			if err != nil {
				// One failed run (e.g. a half-written export) should not
				// end the watch session.
				printer.Error(err)
				continue
			}
			printer.IndexResult(result)
		}
	}
}
