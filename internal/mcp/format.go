package mcp

import (
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
)

// RefSummary is the compact reference shape returned by search tools.
type RefSummary struct {
	RecNumber int      `json:"rec_number" jsonschema:"the EndNote record number"`
	RefType   string   `json:"ref_type,omitempty"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors,omitempty"`
	Year      string   `json:"year,omitempty"`
	Journal   string   `json:"journal,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Score     float64  `json:"score,omitempty" jsonschema:"relevance score, higher is better"`
	HasPDF    bool     `json:"has_pdf,omitempty"`
}

// maxSummaryKeywords caps keyword lists in search output.
const maxSummaryKeywords = 5

func toSummary(ref *library.Reference, score float64) RefSummary {
	kw := ref.Keywords
	if len(kw) > maxSummaryKeywords {
		kw = kw[:maxSummaryKeywords]
	}
	return RefSummary{
		RecNumber: ref.RecNumber,
		RefType:   ref.RefType,
		Title:     ref.Title,
		Authors:   ref.Authors,
		Year:      ref.Year,
		Journal:   ref.Journal,
		Keywords:  kw,
		Score:     score,
		HasPDF:    ref.HasAttachment(),
	}
}

func toSummaries(results []search.Result) []RefSummary {
	out := make([]RefSummary, 0, len(results))
	for _, r := range results {
		out = append(out, toSummary(r.Reference, r.Score))
	}
	return out
}

// SnippetOutput is one matching passage inside a PDF attachment.
type SnippetOutput struct {
	Page int    `json:"page" jsonschema:"1-based page number"`
	Text string `json:"text" jsonschema:"snippet with >>> <<< match markers"`
}

// FulltextMatch groups PDF snippets under their reference.
type FulltextMatch struct {
	Reference RefSummary      `json:"reference"`
	Snippets  []SnippetOutput `json:"snippets"`
}

func toFulltextMatches(results []search.FulltextResult) []FulltextMatch {
	out := make([]FulltextMatch, 0, len(results))
	for _, r := range results {
		m := FulltextMatch{Reference: toSummary(r.Reference, 0)}
		for _, s := range r.Snippets {
			m.Snippets = append(m.Snippets, SnippetOutput{Page: s.Page, Text: s.Text})
		}
		out = append(out, m)
	}
	return out
}

// ReferenceDetails is the full metadata shape for one reference.
type ReferenceDetails struct {
	RecNumber      int      `json:"rec_number"`
	RefType        string   `json:"ref_type,omitempty"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Year           string   `json:"year,omitempty"`
	Journal        string   `json:"journal,omitempty"`
	Volume         string   `json:"volume,omitempty"`
	Issue          string   `json:"issue,omitempty"`
	Pages          string   `json:"pages,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	DOI            string   `json:"doi,omitempty"`
	URL            string   `json:"url,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	PlacePublished string   `json:"place_published,omitempty"`
	Edition        string   `json:"edition,omitempty"`
	ISBN           string   `json:"isbn,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	PDFPath        string   `json:"pdf_path,omitempty"`
	IndexedPages   int      `json:"indexed_pdf_pages"`
}

func toDetails(ref *library.Reference, indexedPages int) *ReferenceDetails {
	return &ReferenceDetails{
		RecNumber:      ref.RecNumber,
		RefType:        ref.RefType,
		Title:          ref.Title,
		Authors:        ref.Authors,
		Year:           ref.Year,
		Journal:        ref.Journal,
		Volume:         ref.Volume,
		Issue:          ref.Issue,
		Pages:          ref.Pages,
		Abstract:       ref.Abstract,
		Keywords:       ref.Keywords,
		DOI:            ref.DOI,
		URL:            ref.URL,
		Publisher:      ref.Publisher,
		PlacePublished: ref.PlacePublished,
		Edition:        ref.Edition,
		ISBN:           ref.ISBN,
		Notes:          ref.Notes,
		PDFPath:        ref.PDFPath,
		IndexedPages:   indexedPages,
	}
}
