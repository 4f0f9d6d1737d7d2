package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	"github.com/gokmengokhan/endnote-mcp/internal/embed"
	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
)

// SemanticFloor drops semantic matches below this cosine similarity;
// nearest-neighbor search always returns something, however unrelated.
const SemanticFloor = 0.1

// relatedKeywordCount caps keywords used for the lexical fallback of
// FindRelated.
const relatedKeywordCount = 5

// Result is one ranked reference.
type Result struct {
	Reference *library.Reference `json:"reference"`
	Score     float64            `json:"score"`
}

// Envelope carries hybrid results plus the degradation marker: when the
// semantic side is unavailable, results are lexical-only and Degraded
// is set so callers can tell "no semantic index" from "fused ranking".
type Envelope struct {
	Results  []Result `json:"results"`
	Degraded bool     `json:"degraded"`
}

// Snippet is one matching passage inside an attachment.
type Snippet struct {
	Page  int     `json:"page"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// FulltextResult groups attachment matches by reference.
type FulltextResult struct {
	Reference *library.Reference `json:"reference"`
	Snippets  []Snippet          `json:"snippets"`
}

// Engine answers retrieval queries over committed index state. Reads
// take no locks beyond the stores' own; a concurrently running index
// commit is observed atomically per record.
type Engine struct {
	cfg      *config.Config
	records  *store.SQLiteStore
	lexical  store.LexicalIndex
	vectors  *store.VectorStore
	embedder embed.Embedder // nil when embeddings are disabled
	fusion   *RRFFusion
	logger   *slog.Logger
}

// NewEngine wires a retrieval engine.
func NewEngine(
	cfg *config.Config,
	records *store.SQLiteStore,
	lexical store.LexicalIndex,
	vectors *store.VectorStore,
	embedder embed.Embedder,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		records:  records,
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		fusion:   NewRRFFusion(cfg.Search.RRFConstant),
		logger:   logger,
	}
}

func (e *Engine) maxResults(limit int) int {
	if limit <= 0 || limit > e.cfg.Search.MaxResults {
		return e.cfg.Search.MaxResults
	}
	return limit
}

// SearchLexical runs a keyword query over reference metadata.
func (e *Engine) SearchLexical(ctx context.Context, query string, filters Filters, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, enerr.InvalidQuery("empty query")
	}
	limit = e.maxResults(limit)

	// Over-fetch when filtering so post-rank filters don't starve the
	// result list.
	fetch := limit
	if !filters.IsZero() {
		fetch = limit * 4
	}
	hits, err := e.lexical.SearchReferences(ctx, query, nil, fetch)
	if err != nil {
		return nil, err
	}
	return e.resolveRefHits(ctx, hits, filters, limit)
}

// SearchFulltext runs a keyword query over extracted PDF text, grouped
// by reference with up to maxSnippets passages each, best match first.
func (e *Engine) SearchFulltext(ctx context.Context, query string, limit, maxSnippets int) ([]FulltextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, enerr.InvalidQuery("empty query")
	}
	limit = e.maxResults(limit)
	if maxSnippets <= 0 {
		maxSnippets = 3
	}

	// Generous raw pool; grouping collapses it per reference.
	fetch := limit * 10
	if fetch < 200 {
		fetch = 200
	}
	hits, err := e.lexical.SearchFulltext(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	var results []FulltextResult
	index := make(map[int]int)
	for _, h := range hits {
		i, seen := index[h.RecNumber]
		if !seen {
			if len(results) == limit {
				continue
			}
			ref, err := e.records.GetReference(ctx, h.RecNumber)
			if err != nil {
				continue // pruned concurrently
			}
			index[h.RecNumber] = len(results)
			i = len(results)
			results = append(results, FulltextResult{Reference: ref})
		}
		if len(results[i].Snippets) < maxSnippets {
			results[i].Snippets = append(results[i].Snippets, Snippet{
				Page:  h.PageNumber,
				Text:  h.Snippet,
				Score: h.Score,
			})
		}
	}
	return results, nil
}

// SearchSemantic runs an embedding similarity query. Returns a typed
// unavailability error when no semantic index exists, so callers can
// distinguish "capability absent" from "no matches".
func (e *Engine) SearchSemantic(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, enerr.InvalidQuery("empty query")
	}
	hits, err := e.semanticHits(ctx, query, e.maxResults(limit))
	if err != nil {
		return nil, err
	}
	return e.resolveVectorHits(ctx, hits, e.maxResults(limit))
}

func (e *Engine) semanticHits(ctx context.Context, query string, limit int) ([]store.VectorHit, error) {
	if e.embedder == nil || !e.vectors.Available() {
		return nil, enerr.SemanticUnavailable()
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeEmbeddingFailed, err)
	}

	hits := e.vectors.Search(vec, limit)
	filtered := hits[:0]
	for _, h := range hits {
		if h.Similarity >= SemanticFloor {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// SearchHybrid fuses lexical and semantic rankings. When the semantic
// side is unavailable the envelope degrades to the lexical ranking with
// Degraded set; the query still succeeds.
func (e *Engine) SearchHybrid(ctx context.Context, query string, filters Filters, limit int) (*Envelope, error) {
	if strings.TrimSpace(query) == "" {
		return nil, enerr.InvalidQuery("empty query")
	}
	limit = e.maxResults(limit)

	fetch := limit * 2
	lexHits, err := e.lexical.SearchReferences(ctx, query, nil, fetch)
	if err != nil {
		return nil, err
	}

	semHits, err := e.semanticHits(ctx, query, fetch)
	if err != nil {
		if enerr.GetCode(err) == enerr.ErrCodeSemanticUnavailable {
			results, rerr := e.resolveRefHits(ctx, lexHits, filters, limit)
			if rerr != nil {
				return nil, rerr
			}
			return &Envelope{Results: results, Degraded: true}, nil
		}
		return nil, err
	}

	lexical := make([]rankedHit, len(lexHits))
	for i, h := range lexHits {
		lexical[i] = rankedHit{RecNumber: h.RecNumber, Score: h.Score}
	}
	semantic := make([]rankedHit, len(semHits))
	for i, h := range semHits {
		semantic[i] = rankedHit{RecNumber: h.RecNumber, Score: h.Similarity}
	}

	weights := Weights{
		Lexical:  e.cfg.Search.LexicalWeight,
		Semantic: e.cfg.Search.SemanticWeight,
	}
	fused := e.fusion.Fuse(lexical, semantic, weights)

	var results []Result
	for _, h := range fused {
		if len(results) == limit {
			break
		}
		ref, err := e.records.GetReference(ctx, h.RecNumber)
		if err != nil {
			continue
		}
		if !filters.Match(ref) {
			continue
		}
		results = append(results, Result{Reference: ref, Score: h.RRFScore})
	}
	return &Envelope{Results: results}, nil
}

// FindRelated returns references similar to an existing record: by
// embedding when the record has one, otherwise by a lexical query built
// from its title and keywords. The record itself is excluded.
func (e *Engine) FindRelated(ctx context.Context, recNumber, limit int) ([]Result, error) {
	limit = e.maxResults(limit)

	ref, err := e.records.GetReference(ctx, recNumber)
	if err != nil {
		return nil, err
	}

	if vec, ok := e.vectors.Vector(recNumber); ok {
		hits := e.vectors.Search(vec, limit+1)
		var kept []store.VectorHit
		for _, h := range hits {
			if h.RecNumber != recNumber && h.Similarity >= SemanticFloor {
				kept = append(kept, h)
			}
		}
		return e.resolveVectorHits(ctx, kept, limit)
	}

	// Lexical fallback: one query per title/keyword term, scores summed
	// across terms. Multi-term queries conjoin in the lexical index, and
	// related records rarely share the whole vocabulary.
	scores := make(map[int]float64)
	for _, term := range relatedTerms(ref) {
		hits, err := e.lexical.SearchReferences(ctx, term, nil, (limit+1)*2)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if h.RecNumber != recNumber {
				scores[h.RecNumber] += h.Score
			}
		}
	}

	kept := make([]store.RefHit, 0, len(scores))
	for rec, score := range scores {
		kept = append(kept, store.RefHit{RecNumber: rec, Score: score})
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].RecNumber < kept[j].RecNumber
	})
	return e.resolveRefHits(ctx, kept, Filters{}, limit)
}

// relatedTerms extracts the deduplicated query vocabulary of a record:
// title words plus the leading keywords.
func relatedTerms(ref *library.Reference) []string {
	kw := ref.Keywords
	if len(kw) > relatedKeywordCount {
		kw = kw[:relatedKeywordCount]
	}

	seen := make(map[string]bool)
	var terms []string
	add := func(text string) {
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			if len(tok) < 3 || seen[tok] {
				continue
			}
			seen[tok] = true
			terms = append(terms, tok)
		}
	}
	add(ref.Title)
	for _, k := range kw {
		add(k)
	}
	return terms
}

func (e *Engine) resolveRefHits(ctx context.Context, hits []store.RefHit, filters Filters, limit int) ([]Result, error) {
	var results []Result
	for _, h := range hits {
		if len(results) == limit {
			break
		}
		ref, err := e.records.GetReference(ctx, h.RecNumber)
		if err != nil {
			continue // pruned concurrently
		}
		if !filters.Match(ref) {
			continue
		}
		results = append(results, Result{Reference: ref, Score: h.Score})
	}
	return results, nil
}

func (e *Engine) resolveVectorHits(ctx context.Context, hits []store.VectorHit, limit int) ([]Result, error) {
	var results []Result
	for _, h := range hits {
		if len(results) == limit {
			break
		}
		ref, err := e.records.GetReference(ctx, h.RecNumber)
		if err != nil {
			continue
		}
		results = append(results, Result{Reference: ref, Score: h.Similarity})
	}
	return results, nil
}
