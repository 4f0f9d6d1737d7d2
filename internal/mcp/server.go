package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	"github.com/gokmengokhan/endnote-mcp/internal/embed"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
	"github.com/gokmengokhan/endnote-mcp/pkg/version"
)

// Server bridges AI clients with the library index: search, citations,
// PDF page reads, and index diagnostics.
type Server struct {
	mcp      *mcp.Server
	cfg      *config.Config
	records  *store.SQLiteStore
	engine   *search.Engine
	vectors  *store.VectorStore
	embedder embed.Embedder // nil when embeddings are disabled
	logger   *slog.Logger
}

// NewServer creates an MCP server over an opened index.
func NewServer(
	cfg *config.Config,
	records *store.SQLiteStore,
	engine *search.Engine,
	vectors *store.VectorStore,
	embedder embed.Embedder,
	logger *slog.Logger,
) (*Server, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		records:  records,
		engine:   engine,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "EndNote Library",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// registerTools wires all library tools into the protocol server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_references",
		Description: "Search the EndNote library by title, author, keywords, or abstract. " +
			"Uses full-text search with BM25 relevance ranking. Supports year, author, and type filters.",
	}, s.handleSearchReferences)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_fulltext",
		Description: "Search inside the PDF content of references. Finds quotes, methods, and " +
			"passages within papers; results are grouped per reference with page-level snippets.",
	}, s.handleSearchFulltext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_semantic",
		Description: "Search the library by meaning rather than keywords, using embeddings. " +
			"Finds related references even when they use different terminology.",
	}, s.handleSearchSemantic)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_library",
		Description: "Combined search across metadata, PDF content, and semantic similarity. " +
			"When no embeddings exist the result degrades to lexical ranking and says so.",
	}, s.handleSearchLibrary)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "find_related",
		Description: "Find references related to a given record, by embedding similarity when " +
			"available, otherwise by shared title terms and keywords.",
	}, s.handleFindRelated)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_reference_details",
		Description: "Get full metadata for a reference by record number: abstract, keywords, DOI, journal info.",
	}, s.handleGetReferenceDetails)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_citation",
		Description: "Format one reference as a citation. Styles: apa7, harvard, vancouver, chicago, ieee.",
	}, s.handleGetCitation)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_bibliography",
		Description: "Generate a formatted bibliography for multiple references, sorted by author " +
			"or year, with a/b/c disambiguation for same-author same-year entries.",
	}, s.handleGetBibliography)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_bibtex",
		Description: "Export references as BibTeX entries ready for a .bib file.",
	}, s.handleGetBibtex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "read_pdf_section",
		Description: "Read specific pages of a reference's indexed PDF text. Pages are 1-based; " +
			"requests beyond the document fail with a range error.",
	}, s.handleReadPDFSection)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report index statistics: reference counts, extracted pages, embedding coverage, and embedder state.",
	}, s.handleIndexStatus)

	s.logger.Info("mcp tools registered", slog.Int("count", 11))
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}
