// Package extract turns PDF attachments into per-page text.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// Extractor produces per-page text for one document. Implementations
// must return pages in order with 1-based page numbers, including pages
// that yield no text, so stored page counts match the document.
type Extractor interface {
	Extract(ctx context.Context, path string, maxPages int) ([]library.Page, error)
}

// PDFExtractor extracts text with a pure-Go PDF reader.
type PDFExtractor struct{}

var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor returns the default extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

type extractResult struct {
	pages []library.Page
	err   error
}

// Extract reads up to maxPages pages (0 = all). The underlying reader is
// not cancellable, so on context expiry the worker goroutine is
// abandoned and a retryable extraction error is returned; the attachment
// stays marked pending and is retried on the next run.
func (e *PDFExtractor) Extract(ctx context.Context, path string, maxPages int) ([]library.Page, error) {
	ch := make(chan extractResult, 1)
	go func() {
		pages, err := extractPages(path, maxPages)
		ch <- extractResult{pages: pages, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, enerr.New(enerr.ErrCodeExtractionFailed,
			fmt.Sprintf("extraction of %s aborted: %v", path, ctx.Err()), ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, enerr.New(enerr.ErrCodeExtractionFailed,
				fmt.Sprintf("cannot extract %s: %v", path, res.err), res.err)
		}
		return res.pages, nil
	}
}

func extractPages(path string, maxPages int) (pages []library.Page, err error) {
	// Malformed PDFs make the reader panic; treat that as a failed
	// attachment, not a crashed run.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reader panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		text := ""
		if !page.V.IsNull() {
			if t, err := page.GetPlainText(nil); err == nil {
				text = strings.TrimSpace(t)
			}
			// A page that fails to render stays in the set with empty
			// text; dropping it would shift page numbers.
		}
		pages = append(pages, library.Page{PageNumber: num, Text: text})
	}
	return pages, nil
}
