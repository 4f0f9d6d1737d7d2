package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/search"
	"github.com/gokmengokhan/endnote-mcp/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	lexicalOnly bool
	yearFrom    int
	yearTo      int
	refType     string
	author      string
	jsonOutput  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed library",
		Long: `Search reference metadata with hybrid ranking: keyword matching
fused with semantic similarity when embeddings are available,
keyword ranking alone otherwise.

Examples:
  endnote-mcp search "cultural capital"
  endnote-mcp search bourdieu --author bourdieu --year-from 1980
  endnote-mcp search "deep learning" --type Book --limit 5
  endnote-mcp search habitus --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical", false, "Keyword ranking only, skip semantic search")
	cmd.Flags().IntVar(&opts.yearFrom, "year-from", 0, "Only references published in or after this year")
	cmd.Flags().IntVar(&opts.yearTo, "year-to", 0, "Only references published in or before this year")
	cmd.Flags().StringVar(&opts.refType, "type", "", "Filter by reference type (e.g. \"Journal Article\", Book)")
	cmd.Flags().StringVar(&opts.author, "author", "", "Filter by author name substring")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	c, cleanup, err := openComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := c.newEngine()
	filters := search.Filters{
		YearFrom: opts.yearFrom,
		YearTo:   opts.yearTo,
		RefType:  opts.refType,
		Author:   opts.author,
	}

	var results []search.Result
	var degraded bool
	if opts.lexicalOnly {
		results, err = engine.SearchLexical(ctx, query, filters, opts.limit)
	} else {
		var envelope *search.Envelope
		envelope, err = engine.SearchHybrid(ctx, query, filters, opts.limit)
		if envelope != nil {
			results = envelope.Results
			degraded = envelope.Degraded
		}
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(search.Envelope{Results: results, Degraded: degraded})
	}
	ui.NewPrinter(cmd.OutOrStdout()).SearchResults(query, results, degraded)
	return nil
}
