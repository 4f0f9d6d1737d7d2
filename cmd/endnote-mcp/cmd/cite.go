package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/cite"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/ui"
)

// citeOptions holds CLI flags for cite.
type citeOptions struct {
	style        string
	bibliography bool
	bibtex       bool
	sortBy       string
}

func newCiteCmd() *cobra.Command {
	var opts citeOptions

	cmd := &cobra.Command{
		Use:   "cite <rec-number>...",
		Short: "Format citations for library references",
		Long: `Format one or more references as citations, a sorted bibliography,
or BibTeX entries. Styles: apa7, harvard, vancouver, chicago, ieee.

Examples:
  endnote-mcp cite 42
  endnote-mcp cite 42 57 103 --style harvard
  endnote-mcp cite 42 57 103 --bibliography --sort year
  endnote-mcp cite 42 57 --bibtex`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := make([]int, 0, len(args))
			for _, arg := range args {
				rec, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid record number %q", arg)
				}
				recs = append(recs, rec)
			}
			return runCite(cmd.Context(), cmd, recs, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.style, "style", "s", "apa7", "Citation style")
	cmd.Flags().BoolVar(&opts.bibliography, "bibliography", false, "Output a sorted, numbered bibliography")
	cmd.Flags().BoolVar(&opts.bibtex, "bibtex", false, "Output BibTeX entries")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "author", "Bibliography sort order: author, year")

	return cmd
}

func runCite(ctx context.Context, cmd *cobra.Command, recs []int, opts citeOptions) error {
	style, err := cite.ParseStyle(opts.style)
	if err != nil {
		return err
	}
	var order cite.SortOrder
	switch opts.sortBy {
	case "author":
		order = cite.SortByAuthor
	case "year":
		order = cite.SortByYear
	default:
		return fmt.Errorf("unknown sort order %q (valid: author, year)", opts.sortBy)
	}

	c, cleanup, err := openComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	refs := make([]*library.Reference, 0, len(recs))
	for _, rec := range recs {
		ref, err := c.records.GetReference(ctx, rec)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	switch {
	case opts.bibtex:
		fmt.Fprintln(cmd.OutOrStdout(), cite.BibTeX(refs))
	case opts.bibliography:
		entries := cite.Bibliography(refs, style, order)
		texts := make([]string, len(entries))
		for i, e := range entries {
			texts[i] = e.Text
		}
		printer.Bibliography(string(style), texts)
	default:
		formatted := cite.FormatSet(refs, style)
		for _, ref := range refs {
			printer.Citation(string(style), formatted[ref.RecNumber])
		}
	}
	return nil
}
