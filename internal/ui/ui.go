// Package ui renders CLI output for index runs, status, and search
// results. Styled output is used on interactive terminals and degrades
// to plain text for pipes, CI, and NO_COLOR.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/gokmengokhan/endnote-mcp/internal/index"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
)

// Printer writes human-facing command output.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a printer for w, choosing styled or plain output
// from the terminal environment.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, styles: GetStyles(!useColor(w))}
}

// NewPlainPrinter creates a printer with styling disabled.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{out: w, styles: NoColorStyles()}
}

func useColor(w io.Writer) bool {
	if detectNoColor() {
		return false
	}
	return IsTTY(w)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func detectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// IndexResult prints a summary of one indexing run.
func (p *Printer) IndexResult(r *index.Result) {
	p.printf("%s\n", p.styles.Header.Render("Indexing complete"))
	p.printf("  inserted:   %d\n", r.Inserted)
	p.printf("  updated:    %d\n", r.Updated)
	p.printf("  unchanged:  %d\n", r.Unchanged)
	p.printf("  removed:    %d\n", r.Removed)
	p.printf("  extracted:  %d\n", r.Extracted)
	if r.ExtractionFailed > 0 {
		p.printf("  %s\n", p.styles.Warning.Render(
			fmt.Sprintf("extraction failed: %d (retried next run)", r.ExtractionFailed)))
	}
	if r.Embedded > 0 {
		p.printf("  embedded:   %d\n", r.Embedded)
	}
	p.printf("  %s\n", p.styles.Dim.Render("took "+r.Duration.Round(time.Millisecond).String()))
}

// Status prints index statistics.
func (p *Printer) Status(stats *store.Stats, vectorCount int, semanticAvailable bool) {
	p.printf("%s\n", p.styles.Header.Render("Library index"))
	p.printf("  references:          %d\n", stats.References)
	p.printf("  with attachments:    %d\n", stats.WithAttachments)
	p.printf("  pages extracted:     %d\n", stats.PagesExtracted)
	if stats.ExtractionPending > 0 {
		p.printf("  %s\n", p.styles.Warning.Render(
			fmt.Sprintf("extraction pending:  %d", stats.ExtractionPending)))
	}
	p.printf("  embedded:            %d\n", stats.Embedded)
	p.printf("  vectors loaded:      %d\n", vectorCount)
	if semanticAvailable {
		p.printf("  semantic search:     %s\n", p.styles.Success.Render("available"))
	} else {
		p.printf("  semantic search:     %s\n", p.styles.Dim.Render("unavailable"))
	}
}

// SearchResults prints a ranked reference list.
func (p *Printer) SearchResults(query string, results []search.Result, degraded bool) {
	if len(results) == 0 {
		p.printf("No references found for: %s\n", query)
		return
	}
	p.printf("%s\n", p.styles.Header.Render(
		fmt.Sprintf("Found %d reference(s):", len(results))))
	if degraded {
		p.printf("%s\n", p.styles.Warning.Render(
			"  (semantic index unavailable, lexical ranking only)"))
	}
	for _, r := range results {
		ref := r.Reference
		line := fmt.Sprintf("  [%d] %s (%s). %s.",
			ref.RecNumber, strings.Join(ref.Authors, "; "), displayYear(ref.Year), ref.Title)
		if ref.Journal != "" {
			line += " " + p.styles.Dim.Render("*"+ref.Journal+"*.")
		}
		p.printf("%s\n", line)
	}
}

// Citation prints one formatted citation.
func (p *Printer) Citation(style, citation string) {
	p.printf("[%s] %s\n", p.styles.Stage.Render(strings.ToUpper(style)), citation)
}

// Bibliography prints numbered bibliography entries.
func (p *Printer) Bibliography(style string, entries []string) {
	p.printf("%s\n", p.styles.Header.Render(
		fmt.Sprintf("Bibliography (%d references, %s):", len(entries), strings.ToUpper(style))))
	for i, e := range entries {
		p.printf("  %d. %s\n", i+1, e)
	}
}

// Error prints an error line to the output.
func (p *Printer) Error(err error) {
	p.printf("%s\n", p.styles.Error.Render("error: "+err.Error()))
}

func displayYear(year string) string {
	if strings.TrimSpace(year) == "" {
		return "n.d."
	}
	return year
}
