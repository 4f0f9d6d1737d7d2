// Package search combines lexical and semantic retrieval over the
// library index. Hybrid results are fused with Reciprocal Rank Fusion.
package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains.
const DefaultRRFConstant = 60

// Weights controls the contribution of each retrieval source.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights weighs both sources equally.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Semantic: 0.5}
}

// FusedHit is one reference after RRF fusion.
type FusedHit struct {
	RecNumber    int     // Record identity
	RRFScore     float64 // Combined RRF score (normalized 0-1)
	LexicalScore float64 // Original BM25 score (preserved)
	LexicalRank  int     // Position in lexical list (1-indexed, 0 if absent)
	SemScore     float64 // Original cosine similarity (preserved)
	SemRank      int     // Position in semantic list (1-indexed, 0 if absent)
	InBothLists  bool    // Record appeared in both result lists
}

// RRFFusion fuses two ranked lists.
//
// RRF_score(d) = Σ weight_i / (k + rank_i), rank 1-indexed. A record
// missing from one list contributes that source's weight at
// missing_rank = max(len(lexical), len(semantic)) + 1.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion instance. k <= 0 defaults to 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

type rankedHit struct {
	RecNumber int
	Score     float64
}

// Fuse combines lexical and semantic rankings.
// Sorted by RRFScore desc, then InBothLists, then LexicalScore desc,
// then RecNumber asc — fully deterministic for equal inputs.
func (f *RRFFusion) Fuse(lexical, semantic []rankedHit, weights Weights) []*FusedHit {
	if len(lexical) == 0 && len(semantic) == 0 {
		return []*FusedHit{}
	}

	scores := make(map[int]*FusedHit, len(lexical)+len(semantic))
	get := func(rec int) *FusedHit {
		if h, ok := scores[rec]; ok {
			return h
		}
		h := &FusedHit{RecNumber: rec}
		scores[rec] = h
		return h
	}

	for rank, r := range lexical {
		h := get(r.RecNumber)
		h.LexicalScore = r.Score
		h.LexicalRank = rank + 1
		h.RRFScore += weights.Lexical / float64(f.K+rank+1)
	}
	for rank, r := range semantic {
		h := get(r.RecNumber)
		h.SemScore = r.Score
		h.SemRank = rank + 1
		h.RRFScore += weights.Semantic / float64(f.K+rank+1)
		if h.LexicalRank > 0 {
			h.InBothLists = true
		}
	}

	missingRank := len(lexical) + 1
	if len(semantic) > len(lexical) {
		missingRank = len(semantic) + 1
	}
	for _, h := range scores {
		if h.LexicalRank == 0 {
			h.RRFScore += weights.Lexical / float64(f.K+missingRank)
		}
		if h.SemRank == 0 {
			h.RRFScore += weights.Semantic / float64(f.K+missingRank)
		}
	}

	results := make([]*FusedHit, 0, len(scores))
	for _, h := range scores {
		results = append(results, h)
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.LexicalScore != b.LexicalScore {
			return a.LexicalScore > b.LexicalScore
		}
		return a.RecNumber < b.RecNumber
	})

	// Normalize to 0-1; the top hit becomes 1.0.
	if maxScore := results[0].RRFScore; maxScore > 0 {
		for _, h := range results {
			h.RRFScore /= maxScore
		}
	}
	return results
}
