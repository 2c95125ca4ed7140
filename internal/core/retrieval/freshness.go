package retrieval

import (
	"math"
	"sort"
	"time"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// freshnessFloor guarantees age never drives a chunk to near-zero relevance;
// freshness nudges, it does not exclude.
const freshnessFloor = 0.2

// FreshnessWeight returns max(0.2, exp(-lambda*ageDays)). Lambda zero is a
// no-op, and undated evidence (agreement text, schema rules) is never
// penalized.
func FreshnessWeight(dtISO string, lambda float64, now time.Time) float64 {
	if lambda <= 0 || dtISO == "" {
		return 1.0
	}
	t, ok := domain.ParseISOTime(dtISO)
	if !ok {
		return 1.0
	}
	ageDays := now.UTC().Sub(t).Hours() / 24.0
	return math.Max(freshnessFloor, math.Exp(-lambda*ageDays))
}

// ApplyFreshness rescales merged scores by recency and re-sorts stably.
func ApplyFreshness(results []domain.ScoredChunk, lambda float64, now time.Time) []domain.ScoredChunk {
	if lambda <= 0 || len(results) == 0 {
		return results
	}

	out := make([]domain.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = domain.ScoredChunk{
			Chunk: r.Chunk,
			Score: r.Score * FreshnessWeight(r.Chunk.Meta.DtISO, lambda, now),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
