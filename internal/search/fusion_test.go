package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_BothListsAgreeOnTop(t *testing.T) {
	f := NewRRFFusion(60)

	lexical := []rankedHit{{1, 12.5}, {2, 8.0}, {3, 2.1}}
	semantic := []rankedHit{{1, 0.92}, {3, 0.55}}

	fused := f.Fuse(lexical, semantic, DefaultWeights())
	require.Len(t, fused, 3)

	assert.Equal(t, 1, fused[0].RecNumber)
	assert.True(t, fused[0].InBothLists)
	assert.Equal(t, 1.0, fused[0].RRFScore)
	assert.Equal(t, 1, fused[0].LexicalRank)
	assert.Equal(t, 1, fused[0].SemRank)
	assert.Equal(t, 12.5, fused[0].LexicalScore)
	assert.Equal(t, 0.92, fused[0].SemScore)
}

func TestFuse_SingleSourceStillRanks(t *testing.T) {
	f := NewRRFFusion(60)

	fused := f.Fuse([]rankedHit{{7, 5.0}, {8, 3.0}}, nil, DefaultWeights())
	require.Len(t, fused, 2)
	assert.Equal(t, 7, fused[0].RecNumber)
	assert.Equal(t, 8, fused[1].RecNumber)
	assert.False(t, fused[0].InBothLists)
	assert.Zero(t, fused[0].SemRank)
}

func TestFuse_MissingRankPenalty(t *testing.T) {
	// A record in both lists at modest ranks beats a record that tops
	// one list but is absent from the other.
	f := NewRRFFusion(60)

	lexical := []rankedHit{{1, 10.0}, {2, 9.0}}
	semantic := []rankedHit{{2, 0.9}}

	fused := f.Fuse(lexical, semantic, DefaultWeights())
	require.Len(t, fused, 2)
	assert.Equal(t, 2, fused[0].RecNumber)
	assert.True(t, fused[0].InBothLists)
}

func TestFuse_WeightsShiftRanking(t *testing.T) {
	lexical := []rankedHit{{1, 10.0}, {2, 5.0}}
	semantic := []rankedHit{{2, 0.9}, {1, 0.8}}
	f := NewRRFFusion(60)

	lexHeavy := f.Fuse(lexical, semantic, Weights{Lexical: 1.0, Semantic: 0.0})
	assert.Equal(t, 1, lexHeavy[0].RecNumber)

	semHeavy := f.Fuse(lexical, semantic, Weights{Lexical: 0.0, Semantic: 1.0})
	assert.Equal(t, 2, semHeavy[0].RecNumber)
}

func TestFuse_TieBreakByRecNumber(t *testing.T) {
	// Symmetric inputs with equal weights produce a scoring tie; the
	// lower record number wins.
	f := NewRRFFusion(60)
	lexical := []rankedHit{{9, 1.0}, {4, 1.0}}
	semantic := []rankedHit{{4, 1.0}, {9, 1.0}}

	fused := f.Fuse(lexical, semantic, DefaultWeights())
	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].RRFScore, fused[1].RRFScore)
	assert.Equal(t, 4, fused[0].RecNumber)
}

func TestFuse_Deterministic(t *testing.T) {
	f := NewRRFFusion(60)
	lexical := []rankedHit{{3, 7.0}, {1, 6.0}, {2, 5.0}}
	semantic := []rankedHit{{2, 0.8}, {3, 0.7}}

	first := f.Fuse(lexical, semantic, DefaultWeights())
	second := f.Fuse(lexical, semantic, DefaultWeights())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestFuse_Empty(t *testing.T) {
	f := NewRRFFusion(0)
	assert.Equal(t, DefaultRRFConstant, f.K)
	assert.Empty(t, f.Fuse(nil, nil, DefaultWeights()))
}
