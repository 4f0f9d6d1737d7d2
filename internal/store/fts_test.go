package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

func openTestLexical(t *testing.T) (*SQLiteStore, *SQLiteLexicalIndex) {
	t.Helper()
	s := openTestStore(t)
	idx, err := NewSQLiteLexicalIndex(s.DB())
	require.NoError(t, err)
	return s, idx
}

func lexicalFixtures() []*library.Reference {
	return []*library.Reference{
		{
			RecNumber: 1,
			Title:     "Social Capital and Education",
			Authors:   []string{"Bourdieu, Pierre"},
			Abstract:  "How capital converts between fields.",
			Keywords:  []string{"sociology"},
			Journal:   "Sociological Review",
		},
		{
			RecNumber: 2,
			Title:     "Neural Networks",
			Authors:   []string{"Hinton, Geoffrey"},
			Abstract:  "Education of deep models requires capital investment in hardware.",
			Keywords:  []string{"machine learning"},
			Journal:   "Nature",
		},
		{
			RecNumber: 3,
			Title:     "Field Theory",
			Authors:   []string{"Lewin, Kurt"},
			Abstract:  "Psychological fields.",
			Keywords:  []string{"psychology", "capital"},
			Journal:   "Psychological Review",
		},
	}
}

func TestSearchReferences_TitleOutranksAbstract(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	for _, ref := range lexicalFixtures() {
		require.NoError(t, idx.IndexReference(ctx, ref))
	}

	hits, err := idx.SearchReferences(ctx, "education", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// Title weight 10 vs abstract weight 3.
	assert.Equal(t, 1, hits[0].RecNumber)
	assert.Equal(t, 2, hits[1].RecNumber)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchReferences_FieldRestriction(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	for _, ref := range lexicalFixtures() {
		require.NoError(t, idx.IndexReference(ctx, ref))
	}

	hits, err := idx.SearchReferences(ctx, "capital", []string{"keywords"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].RecNumber)
}

func TestSearchReferences_UnknownField(t *testing.T) {
	_, idx := openTestLexical(t)

	_, err := idx.SearchReferences(context.Background(), "capital", []string{"isbn"}, 10)
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeInvalidQuery, enerr.GetCode(err))
}

func TestSearchReferences_PrefixQuery(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	for _, ref := range lexicalFixtures() {
		require.NoError(t, idx.IndexReference(ctx, ref))
	}

	hits, err := idx.SearchReferences(ctx, "neur*", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].RecNumber)
}

func TestSearchReferences_OperatorWordsAreLiteral(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexReference(ctx, &library.Reference{
		RecNumber: 5,
		Title:     "NEAR and AND as ordinary words",
	}))

	// Raw FTS5 would treat these as syntax; quoting keeps them literal.
	hits, err := idx.SearchReferences(ctx, "NEAR AND", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 5, hits[0].RecNumber)
}

func TestSearchReferences_EmptyQuery(t *testing.T) {
	_, idx := openTestLexical(t)

	hits, err := idx.SearchReferences(context.Background(), "   ", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexReference_Reindex(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	ref := lexicalFixtures()[0]
	require.NoError(t, idx.IndexReference(ctx, ref))

	ref.Title = "Cultural Reproduction"
	require.NoError(t, idx.IndexReference(ctx, ref))

	hits, err := idx.SearchReferences(ctx, "reproduction", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// The old title must not match twice or at all.
	hits, err = idx.SearchReferences(ctx, "education", []string{"title"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSearchFulltext_SnippetsAndOrder(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "Nothing relevant here."},
		{RecNumber: 1, PageNumber: 2, Text: "Habitus structures practice and is structured by it."},
	}))
	require.NoError(t, idx.IndexPages(ctx, 2, []library.Page{
		{RecNumber: 2, PageNumber: 1, Text: "The habitus concept, habitus again, habitus everywhere."},
	}))

	hits, err := idx.SearchFulltext(ctx, "habitus", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 2, hits[0].RecNumber, "page with more matches ranks first")
	assert.Contains(t, hits[0].Snippet, ">>>")
	assert.Equal(t, 2, hits[1].PageNumber)
}

func TestDelete_RemovesAllPostings(t *testing.T) {
	_, idx := openTestLexical(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexReference(ctx, lexicalFixtures()[0]))
	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "habitus"},
	}))

	require.NoError(t, idx.Delete(ctx, 1))

	refHits, err := idx.SearchReferences(ctx, "education", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, refHits)

	pageHits, err := idx.SearchFulltext(ctx, "habitus", 10)
	require.NoError(t, err)
	assert.Empty(t, pageHits)
}

func TestBuildMatchExpr(t *testing.T) {
	expr, err := buildMatchExpr(`deep "learning"`, nil)
	require.NoError(t, err)
	assert.Equal(t, `"deep" "learning"`, expr)

	expr, err = buildMatchExpr("neur*", nil)
	require.NoError(t, err)
	assert.Equal(t, `"neur"*`, expr)

	expr, err = buildMatchExpr("capital", []string{"title", "keywords"})
	require.NoError(t, err)
	assert.Equal(t, `{title keywords}: ("capital")`, expr)
}
