package retrieval

import (
	"sort"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// MergeHybrid combines semantic and lexical result lists into one ranking.
// Each list is min-max normalized on its own before weighting, so the
// bounded cosine scale and the unbounded BM25 scale cannot dominate each
// other arbitrarily. The merge key is chunk identity: both lists must come
// from the same corpus build.
func MergeHybrid(vec, lex []domain.ScoredChunk, alpha float64, k int) []domain.ScoredChunk {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	vecNorm := minMaxNormalize(vec)
	lexNorm := minMaxNormalize(lex)

	combined := make(map[*domain.Chunk]float64, len(vec)+len(lex))
	order := make([]*domain.Chunk, 0, len(vec)+len(lex))
	add := func(results []domain.ScoredChunk, weight float64) {
		for _, r := range results {
			if _, seen := combined[r.Chunk]; !seen {
				order = append(order, r.Chunk)
			}
			combined[r.Chunk] += weight * r.Score
		}
	}
	add(vecNorm, alpha)
	add(lexNorm, 1-alpha)

	out := make([]domain.ScoredChunk, 0, len(order))
	for _, chunk := range order {
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: combined[chunk]})
	}

	// Stable sort: equal scores keep first-seen order, so repeated merges of
	// the same inputs yield identical output.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// minMaxNormalize maps scores into [0,1]. A zero-variance list normalizes to
// all 0.0 rather than dividing by zero.
func minMaxNormalize(results []domain.ScoredChunk) []domain.ScoredChunk {
	if len(results) == 0 {
		return nil
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	span := maxScore - minScore
	out := make([]domain.ScoredChunk, len(results))
	for i, r := range results {
		normalized := 0.0
		if span > 0 {
			normalized = (r.Score - minScore) / span
		}
		out[i] = domain.ScoredChunk{Chunk: r.Chunk, Score: normalized}
	}
	return out
}
