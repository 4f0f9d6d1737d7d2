// Package store persists references, extracted PDF pages, embeddings,
// and the derived lexical and vector indexes.
package store

import (
	"context"

	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// RefHit is one lexical match on reference metadata.
type RefHit struct {
	RecNumber int
	Score     float64
}

// PageHit is one lexical match inside extracted PDF text.
type PageHit struct {
	RecNumber  int
	PageNumber int
	Score      float64
	Snippet    string
}

// VectorHit is one semantic match.
type VectorHit struct {
	RecNumber  int
	Similarity float64
}

// Stats summarizes index contents.
type Stats struct {
	References        int `json:"references"`
	WithAttachments   int `json:"with_attachments"`
	RefsWithPages     int `json:"refs_with_pages"`
	PagesExtracted    int `json:"pages_extracted"`
	Embedded          int `json:"embedded"`
	ExtractionPending int `json:"extraction_pending"`
}

// Searchable reference metadata fields for field-restricted queries.
var SearchableFields = []string{"title", "authors", "abstract", "keywords", "journal"}

// LexicalIndex is the keyword-search backend. Two implementations exist:
// SQLite FTS5 (default, shares the record database) and bleve.
type LexicalIndex interface {
	// IndexReference replaces the metadata postings for one reference.
	IndexReference(ctx context.Context, ref *library.Reference) error

	// IndexPages replaces all page postings for one reference.
	IndexPages(ctx context.Context, recNumber int, pages []library.Page) error

	// Delete removes all postings (metadata and pages) for one reference.
	Delete(ctx context.Context, recNumber int) error

	// SearchReferences queries reference metadata. fields restricts the
	// search to a subset of SearchableFields; nil searches all of them
	// with BM25 column weighting. Ties are broken by rec_number.
	SearchReferences(ctx context.Context, query string, fields []string, limit int) ([]RefHit, error)

	// SearchFulltext queries extracted PDF text and returns per-page
	// hits with snippets, best match first.
	SearchFulltext(ctx context.Context, query string, limit int) ([]PageHit, error)

	// Count returns the number of indexed references.
	Count(ctx context.Context) (int, error)

	Close() error
}
