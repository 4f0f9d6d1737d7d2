package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gokmengokhan/endnote-mcp/internal/index"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
)

func TestPrinter_BuffersArePlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Status(&store.Stats{References: 3, Embedded: 2}, 2, true)
	out := buf.String()

	assert.Contains(t, out, "references:          3")
	assert.Contains(t, out, "semantic search:     available")
	// A buffer is not a TTY, so no ANSI escapes.
	assert.NotContains(t, out, "\x1b[")
}

func TestPrinter_IndexResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.IndexResult(&index.Result{
		Inserted: 5, Updated: 2, Unchanged: 10, Removed: 1,
		Extracted: 4, ExtractionFailed: 1, Embedded: 7,
		Duration: 1500 * time.Millisecond,
	})
	out := buf.String()

	assert.Contains(t, out, "inserted:   5")
	assert.Contains(t, out, "extraction failed: 1")
	assert.Contains(t, out, "embedded:   7")
	assert.Contains(t, out, "took 1.5s")
}

func TestPrinter_SearchResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.SearchResults("capital", []search.Result{
		{Reference: &library.Reference{
			RecNumber: 12, Title: "Social Capital Revisited",
			Authors: []string{"Bourdieu, P."}, Year: "1986",
		}},
	}, true)
	out := buf.String()

	assert.Contains(t, out, "[12] Bourdieu, P. (1986). Social Capital Revisited.")
	assert.Contains(t, out, "lexical ranking only")
}

func TestPrinter_SearchResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.SearchResults("nothing", nil, false)
	assert.Equal(t, "No references found for: nothing\n", buf.String())
}

func TestPrinter_Bibliography(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.Bibliography("apa7", []string{"First entry.", "Second entry."})
	out := buf.String()

	assert.Contains(t, out, "Bibliography (2 references, APA7):")
	assert.Contains(t, out, "  1. First entry.")
	assert.Contains(t, out, "  2. Second entry.")
}

func TestDisplayYear(t *testing.T) {
	assert.Equal(t, "1986", displayYear("1986"))
	assert.Equal(t, "n.d.", displayYear("  "))
}
