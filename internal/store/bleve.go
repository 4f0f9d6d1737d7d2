package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// Field boosts mirroring the FTS5 backend's BM25 column weights.
var bleveFieldBoosts = map[string]float64{
	"title":    10.0,
	"authors":  5.0,
	"abstract": 3.0,
	"keywords": 8.0,
	"journal":  2.0,
}

// BleveLexicalIndex implements LexicalIndex over a bleve index.
// References and pages share one index, distinguished by the kind field;
// document IDs are "r:<rec>" and "p:<rec>:<page>".
type BleveLexicalIndex struct {
	index bleve.Index
	path  string
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

type bleveRefDoc struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Abstract string `json:"abstract"`
	Keywords string `json:"keywords"`
	Journal  string `json:"journal"`
}

type blevePageDoc struct {
	Kind string `json:"kind"`
	Body string `json:"body"`
}

// NewBleveLexicalIndex opens (or creates) a bleve lexical index at path.
// An empty path creates an in-memory index for testing.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	im := createLexicalMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return &BleveLexicalIndex{index: idx, path: path}, nil
}

func createLexicalMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	kindField := bleve.NewTextFieldMapping()
	kindField.Analyzer = keyword.Name

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName

	refDoc := bleve.NewDocumentMapping()
	refDoc.AddFieldMappingsAt("kind", kindField)
	for _, f := range SearchableFields {
		refDoc.AddFieldMappingsAt(f, textField)
	}

	pageDoc := bleve.NewDocumentMapping()
	pageDoc.AddFieldMappingsAt("kind", kindField)
	pageDoc.AddFieldMappingsAt("body", textField)

	im.AddDocumentMapping("reference", refDoc)
	im.AddDocumentMapping("page", pageDoc)
	im.TypeField = "kind"
	return im
}

func refDocID(recNumber int) string {
	return fmt.Sprintf("r:%d", recNumber)
}

func pageDocID(recNumber, pageNumber int) string {
	return fmt.Sprintf("p:%d:%d", recNumber, pageNumber)
}

// IndexReference replaces the metadata document for ref.
func (b *BleveLexicalIndex) IndexReference(ctx context.Context, ref *library.Reference) error {
	doc := bleveRefDoc{
		Kind:     "reference",
		Title:    ref.Title,
		Authors:  strings.Join(ref.Authors, "; "),
		Abstract: ref.Abstract,
		Keywords: strings.Join(ref.Keywords, "; "),
		Journal:  ref.Journal,
	}
	if err := b.index.Index(refDocID(ref.RecNumber), doc); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// IndexPages replaces all page documents for one reference.
func (b *BleveLexicalIndex) IndexPages(ctx context.Context, recNumber int, pages []library.Page) error {
	if err := b.deletePages(recNumber); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		if err := batch.Index(pageDocID(recNumber, p.PageNumber),
			blevePageDoc{Kind: "page", Body: p.Text}); err != nil {
			return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// Delete removes the reference document and all its page documents.
func (b *BleveLexicalIndex) Delete(ctx context.Context, recNumber int) error {
	if err := b.index.Delete(refDocID(recNumber)); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return b.deletePages(recNumber)
}

func (b *BleveLexicalIndex) deletePages(recNumber int) error {
	prefix := fmt.Sprintf("p:%d:", recNumber)
	q := query.NewPrefixQuery(prefix)
	q.SetField("_id")

	req := bleve.NewSearchRequestOptions(q, 10000, 0, false)
	res, err := b.index.Search(req)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	batch := b.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// SearchReferences queries reference documents with boosted per-field
// match queries, mirroring the FTS5 backend's weighting.
func (b *BleveLexicalIndex) SearchReferences(ctx context.Context, queryStr string, fields []string, limit int) ([]RefHit, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}
	if len(fields) == 0 {
		fields = SearchableFields
	}

	var perField []query.Query
	for _, f := range fields {
		boost, ok := bleveFieldBoosts[f]
		if !ok {
			return nil, enerr.InvalidQuery(fmt.Sprintf("unknown search field %q", f))
		}
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(f)
		mq.SetBoost(boost)
		perField = append(perField, mq)
	}

	q := bleve.NewConjunctionQuery(
		kindQuery("reference"),
		bleve.NewDisjunctionQuery(perField...),
	)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}

	var hits []RefHit
	for _, hit := range res.Hits {
		rec, ok := parseRefDocID(hit.ID)
		if !ok {
			continue
		}
		hits = append(hits, RefHit{RecNumber: rec, Score: hit.Score})
	}
	return hits, nil
}

// SearchFulltext queries page documents and returns snippet fragments.
func (b *BleveLexicalIndex) SearchFulltext(ctx context.Context, queryStr string, limit int) ([]PageHit, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}

	mq := bleve.NewMatchQuery(queryStr)
	mq.SetField("body")
	q := bleve.NewConjunctionQuery(kindQuery("page"), mq)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("body")

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}

	var hits []PageHit
	for _, hit := range res.Hits {
		rec, page, ok := parsePageDocID(hit.ID)
		if !ok {
			continue
		}
		snippet := ""
		if frags, ok := hit.Fragments["body"]; ok && len(frags) > 0 {
			snippet = frags[0]
		}
		hits = append(hits, PageHit{
			RecNumber:  rec,
			PageNumber: page,
			Score:      hit.Score,
			Snippet:    snippet,
		})
	}
	return hits, nil
}

// Count returns the number of indexed references.
func (b *BleveLexicalIndex) Count(ctx context.Context) (int, error) {
	req := bleve.NewSearchRequestOptions(kindQuery("reference"), 0, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return int(res.Total), nil
}

// Close closes the underlying bleve index.
func (b *BleveLexicalIndex) Close() error {
	return b.index.Close()
}

func kindQuery(kind string) query.Query {
	q := bleve.NewTermQuery(kind)
	q.SetField("kind")
	return q
}

func parseRefDocID(id string) (int, bool) {
	if !strings.HasPrefix(id, "r:") {
		return 0, false
	}
	rec, err := strconv.Atoi(id[2:])
	return rec, err == nil
}

func parsePageDocID(id string) (rec, page int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "p" {
		return 0, 0, false
	}
	rec, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	page, err = strconv.Atoi(parts[2])
	return rec, page, err == nil
}
