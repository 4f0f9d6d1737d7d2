package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and semantic search availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	c, cleanup, err := openComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := c.records.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		info := struct {
			References        int  `json:"references"`
			WithAttachments   int  `json:"with_attachments"`
			PagesExtracted    int  `json:"pages_extracted"`
			ExtractionPending int  `json:"extraction_pending"`
			Embedded          int  `json:"embedded"`
			VectorsLoaded     int  `json:"vectors_loaded"`
			SemanticAvailable bool `json:"semantic_available"`
		}{
			References:        stats.References,
			WithAttachments:   stats.WithAttachments,
			PagesExtracted:    stats.PagesExtracted,
			ExtractionPending: stats.ExtractionPending,
			Embedded:          stats.Embedded,
			VectorsLoaded:     c.vectors.Count(),
			SemanticAvailable: c.vectors.Available(),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	ui.NewPrinter(cmd.OutOrStdout()).Status(stats, c.vectors.Count(), c.vectors.Available())
	return nil
}
