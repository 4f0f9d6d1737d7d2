package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

func openTestBleve(t *testing.T) *BleveLexicalIndex {
	t.Helper()
	idx, err := NewBleveLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleve_SearchReferences(t *testing.T) {
	idx := openTestBleve(t)
	ctx := context.Background()

	for _, ref := range lexicalFixtures() {
		require.NoError(t, idx.IndexReference(ctx, ref))
	}

	hits, err := idx.SearchReferences(ctx, "education", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].RecNumber, "title boost outranks abstract")

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBleve_FieldRestriction(t *testing.T) {
	idx := openTestBleve(t)
	ctx := context.Background()

	for _, ref := range lexicalFixtures() {
		require.NoError(t, idx.IndexReference(ctx, ref))
	}

	hits, err := idx.SearchReferences(ctx, "capital", []string{"keywords"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].RecNumber)

	_, err = idx.SearchReferences(ctx, "capital", []string{"isbn"}, 10)
	require.Error(t, err)
}

func TestBleve_FulltextWithSnippets(t *testing.T) {
	idx := openTestBleve(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 2, Text: "Habitus structures practice."},
	}))

	hits, err := idx.SearchFulltext(ctx, "habitus", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].RecNumber)
	assert.Equal(t, 2, hits[0].PageNumber)
	assert.NotEmpty(t, hits[0].Snippet)
}

func TestBleve_PagesDoNotPolluteReferenceSearch(t *testing.T) {
	idx := openTestBleve(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "education everywhere"},
	}))

	hits, err := idx.SearchReferences(ctx, "education", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBleve_Delete(t *testing.T) {
	idx := openTestBleve(t)
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

func TestBleve_ReindexPagesReplacesOldSet(t *testing.T) {
	idx := openTestBleve(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "first version"},
		{RecNumber: 1, PageNumber: 2, Text: "second page"},
	}))
	require.NoError(t, idx.IndexPages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "replacement text"},
	}))

	hits, err := idx.SearchFulltext(ctx, "second", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale page postings must be removed")

	hits, err = idx.SearchFulltext(ctx, "replacement", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
