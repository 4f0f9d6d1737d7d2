package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRef(rec int) *library.Reference {
	return &library.Reference{
		RecNumber: rec,
		RefType:   "Journal Article",
		Title:     "Distinction",
		Authors:   []string{"Bourdieu, Pierre"},
		Year:      "1984",
		Journal:   "Critique",
		Keywords:  []string{"taste", "class"},
		Abstract:  "A social critique of the judgement of taste.",
		PDFPath:   "bourdieu1984.pdf",
	}
}

func TestUpsertAndGetReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ref := testRef(1)
	require.NoError(t, s.UpsertReference(ctx, ref))

	got, err := s.GetReference(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Distinction", got.Title)
	assert.Equal(t, []string{"Bourdieu, Pierre"}, got.Authors)
	assert.Equal(t, []string{"taste", "class"}, got.Keywords)
	assert.Empty(t, got.ContentHash, "hash must not be set before finalize")
}

func TestFinalizeReference_SetsHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ref := testRef(1)
	require.NoError(t, s.UpsertReference(ctx, ref))
	require.NoError(t, s.FinalizeReference(ctx, 1, ref.ComputeContentHash()))

	got, err := s.GetReference(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ref.ComputeContentHash(), got.ContentHash)
	assert.False(t, got.LastIndexedAt.IsZero())
}

func TestUpsert_ClearsHashOnUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ref := testRef(1)
	require.NoError(t, s.UpsertReference(ctx, ref))
	require.NoError(t, s.FinalizeReference(ctx, 1, ref.ComputeContentHash()))

	ref.Abstract = "Revised."
	require.NoError(t, s.UpsertReference(ctx, ref))

	hashes, err := s.ListContentHashes(ctx)
	require.NoError(t, err)
	assert.Empty(t, hashes[1], "re-upsert must invalidate the stored hash")
}

func TestGetReference_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetReference(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeRecordNotFound, enerr.GetCode(err))
}

func TestFinalizeReference_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.FinalizeReference(context.Background(), 99, "abc")
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeRecordNotFound, enerr.GetCode(err))
}

func TestDeleteReference_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReference(ctx, testRef(1)))
	require.NoError(t, s.ReplacePages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "page one"},
	}))
	require.NoError(t, s.SaveEmbedding(ctx, &library.Embedding{
		RecNumber: 1, Vector: []float32{1, 0}, ModelName: "m", SourceTextHash: "h",
	}))

	require.NoError(t, s.DeleteReference(ctx, 1))

	pages, err := s.GetPages(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pages)

	emb, err := s.GetEmbedding(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, emb)
}

func TestReplacePages_SwapsWholeSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReference(ctx, testRef(1)))
	require.NoError(t, s.ReplacePages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "old one"},
		{RecNumber: 1, PageNumber: 2, Text: "old two"},
		{RecNumber: 1, PageNumber: 3, Text: "old three"},
	}))
	require.NoError(t, s.ReplacePages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "new one"},
		{RecNumber: 1, PageNumber: 2, Text: ""},
	}))

	pages, err := s.GetPages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "new one", pages[0].Text)
	assert.Empty(t, pages[1].Text, "blank pages are stored to keep counts exact")

	count, err := s.PageCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExtractionPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReference(ctx, testRef(1)))
	require.NoError(t, s.UpsertReference(ctx, testRef(2)))
	require.NoError(t, s.SetExtractionPending(ctx, 2, true))

	pending, err := s.ListExtractionPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, pending)

	require.NoError(t, s.SetExtractionPending(ctx, 2, false))
	pending, err = s.ListExtractionPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReference(ctx, testRef(1)))
	in := &library.Embedding{
		RecNumber:      1,
		Vector:         []float32{0.25, -1.5, 3.0},
		ModelName:      "nomic-embed-text",
		SourceTextHash: "hash1",
	}
	require.NoError(t, s.SaveEmbedding(ctx, in))

	out, err := s.GetEmbedding(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Vector, out.Vector)
	assert.Equal(t, "nomic-embed-text", out.ModelName)
	assert.Equal(t, "hash1", out.SourceTextHash)

	all, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteEmbedding(ctx, 1))
	out, err = s.GetEmbedding(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Empty library: all counts zero, no error.
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, st)

	require.NoError(t, s.UpsertReference(ctx, testRef(1)))
	noPDF := testRef(2)
	noPDF.PDFPath = ""
	require.NoError(t, s.UpsertReference(ctx, noPDF))
	require.NoError(t, s.ReplacePages(ctx, 1, []library.Page{
		{RecNumber: 1, PageNumber: 1, Text: "a"},
		{RecNumber: 1, PageNumber: 2, Text: "b"},
	}))
	require.NoError(t, s.SaveEmbedding(ctx, &library.Embedding{
		RecNumber: 1, Vector: []float32{1}, ModelName: "m", SourceTextHash: "h",
	}))
	require.NoError(t, s.SetExtractionPending(ctx, 2, true))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.References)
	assert.Equal(t, 1, st.WithAttachments)
	assert.Equal(t, 1, st.RefsWithPages)
	assert.Equal(t, 2, st.PagesExtracted)
	assert.Equal(t, 1, st.Embedded)
	assert.Equal(t, 1, st.ExtractionPending)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.14159}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Empty(t, decodeVector(nil))
}
