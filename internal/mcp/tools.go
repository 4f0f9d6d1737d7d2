package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gokmengokhan/endnote-mcp/internal/cite"
	"github.com/gokmengokhan/endnote-mcp/internal/config"
	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
)

// SearchReferencesInput is the input for the search_references tool.
type SearchReferencesInput struct {
	Query    string `json:"query" jsonschema:"search terms, e.g. 'social capital Bourdieu'"`
	YearFrom int    `json:"year_from,omitempty" jsonschema:"inclusive start year filter"`
	YearTo   int    `json:"year_to,omitempty" jsonschema:"inclusive end year filter"`
	Author   string `json:"author,omitempty" jsonschema:"author name filter, partial match"`
	RefType  string `json:"ref_type,omitempty" jsonschema:"reference type filter, e.g. 'Journal Article'"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum results, default 50"`
}

// SearchReferencesOutput lists ranked reference matches.
type SearchReferencesOutput struct {
	Results []RefSummary `json:"results"`
	Total   int          `json:"total"`
}

func (s *Server) handleSearchReferences(ctx context.Context, _ *mcp.CallToolRequest, input SearchReferencesInput) (
	*mcp.CallToolResult, SearchReferencesOutput, error,
) {
	start := time.Now()
	filters := search.Filters{
		YearFrom: input.YearFrom,
		YearTo:   input.YearTo,
		Author:   input.Author,
		RefType:  input.RefType,
	}
	results, err := s.engine.SearchLexical(ctx, input.Query, filters, input.Limit)
	if err != nil {
		return nil, SearchReferencesOutput{}, MapError(err)
	}

	s.logger.Info("search_references",
		slog.String("query", input.Query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return nil, SearchReferencesOutput{Results: toSummaries(results), Total: len(results)}, nil
}

// SearchFulltextInput is the input for the search_fulltext tool.
type SearchFulltextInput struct {
	Query string `json:"query" jsonschema:"terms to find inside PDF text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum references, default 50"`
}

// SearchFulltextOutput groups matches per reference.
type SearchFulltextOutput struct {
	Matches       []FulltextMatch `json:"matches"`
	TotalSnippets int             `json:"total_snippets"`
}

func (s *Server) handleSearchFulltext(ctx context.Context, _ *mcp.CallToolRequest, input SearchFulltextInput) (
	*mcp.CallToolResult, SearchFulltextOutput, error,
) {
	results, err := s.engine.SearchFulltext(ctx, input.Query, input.Limit, 3)
	if err != nil {
		return nil, SearchFulltextOutput{}, MapError(err)
	}

	out := SearchFulltextOutput{Matches: toFulltextMatches(results)}
	for _, m := range out.Matches {
		out.TotalSnippets += len(m.Snippets)
	}
	return nil, out, nil
}

// SearchSemanticInput is the input for the search_semantic tool.
type SearchSemanticInput struct {
	Query string `json:"query" jsonschema:"natural-language description of what you are looking for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum results, default 20"`
}

// SearchSemanticOutput lists references ranked by similarity.
type SearchSemanticOutput struct {
	Results []RefSummary `json:"results"`
}

func (s *Server) handleSearchSemantic(ctx context.Context, _ *mcp.CallToolRequest, input SearchSemanticInput) (
	*mcp.CallToolResult, SearchSemanticOutput, error,
) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	results, err := s.engine.SearchSemantic(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchSemanticOutput{}, MapError(err)
	}
	return nil, SearchSemanticOutput{Results: toSummaries(results)}, nil
}

// SearchLibraryInput is the input for the combined search_library tool.
type SearchLibraryInput struct {
	Query    string `json:"query" jsonschema:"search terms"`
	YearFrom int    `json:"year_from,omitempty" jsonschema:"inclusive start year filter"`
	YearTo   int    `json:"year_to,omitempty" jsonschema:"inclusive end year filter"`
	Author   string `json:"author,omitempty" jsonschema:"author name filter, partial match"`
	RefType  string `json:"ref_type,omitempty" jsonschema:"reference type filter"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum references, default 30"`
}

// SearchLibraryOutput carries fused results plus the degradation flag.
type SearchLibraryOutput struct {
	Results  []RefSummary `json:"results"`
	Degraded bool         `json:"degraded" jsonschema:"true when no semantic index exists and ranking is lexical-only"`
}

func (s *Server) handleSearchLibrary(ctx context.Context, _ *mcp.CallToolRequest, input SearchLibraryInput) (
	*mcp.CallToolResult, SearchLibraryOutput, error,
) {
	limit := input.Limit
	if limit <= 0 {
		limit = 30
	}
	filters := search.Filters{
		YearFrom: input.YearFrom,
		YearTo:   input.YearTo,
		Author:   input.Author,
		RefType:  input.RefType,
	}
	envelope, err := s.engine.SearchHybrid(ctx, input.Query, filters, limit)
	if err != nil {
		return nil, SearchLibraryOutput{}, MapError(err)
	}
	return nil, SearchLibraryOutput{
		Results:  toSummaries(envelope.Results),
		Degraded: envelope.Degraded,
	}, nil
}

// FindRelatedInput is the input for the find_related tool.
type FindRelatedInput struct {
	RecNumber int `json:"rec_number" jsonschema:"record number to find related references for"`
	Limit     int `json:"limit,omitempty" jsonschema:"maximum results, default 10"`
}

// FindRelatedOutput lists related references.
type FindRelatedOutput struct {
	Results []RefSummary `json:"results"`
}

func (s *Server) handleFindRelated(ctx context.Context, _ *mcp.CallToolRequest, input FindRelatedInput) (
	*mcp.CallToolResult, FindRelatedOutput, error,
) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	results, err := s.engine.FindRelated(ctx, input.RecNumber, limit)
	if err != nil {
		return nil, FindRelatedOutput{}, MapError(err)
	}
	return nil, FindRelatedOutput{Results: toSummaries(results)}, nil
}

// GetReferenceDetailsInput is the input for get_reference_details.
type GetReferenceDetailsInput struct {
	RecNumber int `json:"rec_number" jsonschema:"the EndNote record number"`
}

func (s *Server) handleGetReferenceDetails(ctx context.Context, _ *mcp.CallToolRequest, input GetReferenceDetailsInput) (
	*mcp.CallToolResult, *ReferenceDetails, error,
) {
	ref, err := s.records.GetReference(ctx, input.RecNumber)
	if err != nil {
		return nil, nil, MapError(err)
	}
	pages, err := s.records.PageCount(ctx, input.RecNumber)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, toDetails(ref, pages), nil
}

// GetCitationInput is the input for get_citation.
type GetCitationInput struct {
	RecNumber int    `json:"rec_number" jsonschema:"the EndNote record number"`
	Style     string `json:"style,omitempty" jsonschema:"citation style: apa7, harvard, vancouver, chicago, ieee; default apa7"`
}

// GetCitationOutput is a single formatted citation.
type GetCitationOutput struct {
	Style    string `json:"style"`
	Citation string `json:"citation"`
}

func (s *Server) handleGetCitation(ctx context.Context, _ *mcp.CallToolRequest, input GetCitationInput) (
	*mcp.CallToolResult, GetCitationOutput, error,
) {
	style, err := s.parseStyle(input.Style)
	if err != nil {
		return nil, GetCitationOutput{}, MapError(err)
	}
	ref, err := s.records.GetReference(ctx, input.RecNumber)
	if err != nil {
		return nil, GetCitationOutput{}, MapError(err)
	}
	return nil, GetCitationOutput{
		Style:    string(style),
		Citation: cite.Format(ref, style),
	}, nil
}

// GetBibliographyInput is the input for get_bibliography.
type GetBibliographyInput struct {
	RecNumbers []int  `json:"rec_numbers" jsonschema:"record numbers to include"`
	Style      string `json:"style,omitempty" jsonschema:"citation style, default apa7"`
	Sort       string `json:"sort,omitempty" jsonschema:"'author' (alphabetical, default) or 'year' (chronological)"`
}

// BibliographyEntry is one formatted bibliography line.
type BibliographyEntry struct {
	RecNumber int    `json:"rec_number"`
	Citation  string `json:"citation"`
}

// GetBibliographyOutput is the ordered bibliography plus any unknown
// record numbers.
type GetBibliographyOutput struct {
	Style    string              `json:"style"`
	Entries  []BibliographyEntry `json:"entries"`
	NotFound []int               `json:"not_found,omitempty"`
}

func (s *Server) handleGetBibliography(ctx context.Context, _ *mcp.CallToolRequest, input GetBibliographyInput) (
	*mcp.CallToolResult, GetBibliographyOutput, error,
) {
	style, err := s.parseStyle(input.Style)
	if err != nil {
		return nil, GetBibliographyOutput{}, MapError(err)
	}
	refs, notFound, err := s.collectRefs(ctx, input.RecNumbers)
	if err != nil {
		return nil, GetBibliographyOutput{}, MapError(err)
	}

	order := cite.SortByAuthor
	if input.Sort == string(cite.SortByYear) {
		order = cite.SortByYear
	}

	out := GetBibliographyOutput{Style: string(style), NotFound: notFound}
	for _, e := range cite.Bibliography(refs, style, order) {
		out.Entries = append(out.Entries, BibliographyEntry{RecNumber: e.RecNumber, Citation: e.Text})
	}
	return nil, out, nil
}

// GetBibtexInput is the input for get_bibtex.
type GetBibtexInput struct {
	RecNumbers []int `json:"rec_numbers" jsonschema:"record numbers to export"`
}

// GetBibtexOutput holds BibTeX source for the requested references.
type GetBibtexOutput struct {
	Bibtex   string `json:"bibtex"`
	NotFound []int  `json:"not_found,omitempty"`
}

func (s *Server) handleGetBibtex(ctx context.Context, _ *mcp.CallToolRequest, input GetBibtexInput) (
	*mcp.CallToolResult, GetBibtexOutput, error,
) {
	refs, notFound, err := s.collectRefs(ctx, input.RecNumbers)
	if err != nil {
		return nil, GetBibtexOutput{}, MapError(err)
	}
	return nil, GetBibtexOutput{Bibtex: cite.BibTeX(refs), NotFound: notFound}, nil
}

// ReadPDFSectionInput is the input for read_pdf_section.
type ReadPDFSectionInput struct {
	RecNumber int `json:"rec_number" jsonschema:"the EndNote record number"`
	StartPage int `json:"start_page,omitempty" jsonschema:"first page to read, 1-based, default 1"`
	EndPage   int `json:"end_page,omitempty" jsonschema:"last page to read, 1-based, default start_page+4"`
}

// PageOutput is one page of extracted text.
type PageOutput struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// ReadPDFSectionOutput carries the requested page range.
type ReadPDFSectionOutput struct {
	Title      string       `json:"title"`
	TotalPages int          `json:"total_pages"`
	Pages      []PageOutput `json:"pages"`
}

func (s *Server) handleReadPDFSection(ctx context.Context, _ *mcp.CallToolRequest, input ReadPDFSectionInput) (
	*mcp.CallToolResult, ReadPDFSectionOutput, error,
) {
	out, err := s.readPDFSection(ctx, input)
	if err != nil {
		return nil, ReadPDFSectionOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) readPDFSection(ctx context.Context, input ReadPDFSectionInput) (ReadPDFSectionOutput, error) {
	var out ReadPDFSectionOutput

	ref, err := s.records.GetReference(ctx, input.RecNumber)
	if err != nil {
		return out, err
	}
	if !ref.HasAttachment() {
		return out, enerr.Newf(enerr.ErrCodeAttachmentNotFound,
			"no PDF attachment for reference #%d", input.RecNumber)
	}

	total, err := s.records.PageCount(ctx, input.RecNumber)
	if err != nil {
		return out, err
	}
	if total == 0 {
		return out, enerr.Newf(enerr.ErrCodeAttachmentNotFound,
			"no extracted text for reference #%d", input.RecNumber).
			WithSuggestion("run 'endnote-mcp index' to extract attachments")
	}

	start := input.StartPage
	if start <= 0 {
		start = 1
	}
	end := input.EndPage
	if end <= 0 {
		end = start + 4
	}
	if end < start {
		return out, enerr.InvalidQuery("end_page must not precede start_page")
	}
	if start > total {
		return out, enerr.PageOutOfRange(start, total)
	}
	if end > total {
		return out, enerr.PageOutOfRange(end, total)
	}
	// Page budget caps how much text one call can pull.
	if budget := s.cfg.Extraction.MaxPages; budget > 0 && end-start+1 > budget {
		end = start + budget - 1
	}

	pages, err := s.records.GetPages(ctx, input.RecNumber)
	if err != nil {
		return out, err
	}

	out.Title = ref.Title
	out.TotalPages = total
	for _, p := range pages {
		if p.PageNumber >= start && p.PageNumber <= end {
			out.Pages = append(out.Pages, PageOutput{Page: p.PageNumber, Text: p.Text})
		}
	}
	return out, nil
}

// IndexStatusInput is the (empty) input for index_status.
type IndexStatusInput struct{}

// EmbeddingStatus describes the embedder capability state.
type EmbeddingStatus struct {
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Status     string `json:"status" jsonschema:"'ready', 'unavailable', or 'disabled'"`
}

// IndexStatusOutput reports index statistics and embedder state.
type IndexStatusOutput struct {
	References        int             `json:"references"`
	WithAttachments   int             `json:"with_attachments"`
	PagesExtracted    int             `json:"pages_extracted"`
	ExtractionPending int             `json:"extraction_pending"`
	Embedded          int             `json:"embedded"`
	VectorCount       int             `json:"vector_count"`
	SemanticAvailable bool            `json:"semantic_available"`
	Embeddings        EmbeddingStatus `json:"embeddings"`
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult, *IndexStatusOutput, error,
) {
	stats, err := s.records.Stats(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}

	out := &IndexStatusOutput{
		References:        stats.References,
		WithAttachments:   stats.WithAttachments,
		PagesExtracted:    stats.PagesExtracted,
		ExtractionPending: stats.ExtractionPending,
		Embedded:          stats.Embedded,
	}
	if s.vectors != nil {
		out.VectorCount = s.vectors.Count()
		out.SemanticAvailable = s.embedder != nil && s.vectors.Available()
	}
	out.Embeddings = s.embeddingStatus(ctx)
	return nil, out, nil
}

func (s *Server) embeddingStatus(ctx context.Context) EmbeddingStatus {
	if s.embedder == nil {
		return EmbeddingStatus{
			Provider: config.EmbeddingProviderNone,
			Status:   "disabled",
		}
	}
	status := "unavailable"
	if s.embedder.Available(ctx) {
		status = "ready"
	}
	return EmbeddingStatus{
		Provider:   s.cfg.Embeddings.Provider,
		Model:      s.embedder.ModelName(),
		Dimensions: s.embedder.Dimensions(),
		Status:     status,
	}
}

func (s *Server) parseStyle(raw string) (cite.Style, error) {
	if raw == "" {
		return cite.StyleAPA7, nil
	}
	return cite.ParseStyle(raw)
}

// collectRefs loads a batch of references, partitioning unknown record
// numbers into notFound instead of failing the whole call.
func (s *Server) collectRefs(ctx context.Context, recNumbers []int) ([]*library.Reference, []int, error) {
	if len(recNumbers) == 0 {
		return nil, nil, enerr.InvalidQuery("no record numbers provided")
	}

	var refs []*library.Reference
	var notFound []int
	for _, rec := range recNumbers {
		ref, err := s.records.GetReference(ctx, rec)
		if err != nil {
			if enerr.GetCode(err) == enerr.ErrCodeRecordNotFound {
				notFound = append(notFound, rec)
				continue
			}
			return nil, nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, nil, enerr.Newf(enerr.ErrCodeRecordNotFound,
			"none of the requested references were found")
	}
	return refs, notFound, nil
}
