package rerank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

// Strategy re-orders a candidate list with a second, more expensive
// relevance judgment. Which strategy runs is a configuration choice made by
// the caller, never inside this package.
type Strategy interface {
	Name() string
	Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, k int) ([]domain.ScoredChunk, error)
}

// None passes through the first k candidates unchanged.
type None struct{}

func (None) Name() string { return "none" }

func (None) Rerank(_ context.Context, _ string, candidates []domain.ScoredChunk, k int) ([]domain.ScoredChunk, error) {
	return trim(candidates, k), nil
}

// Select builds the configured strategy; unknown names degrade to none.
func Select(name string, generator ports.AnswerGenerator, scorer ports.RelevanceScorer, logger *slog.Logger) Strategy {
	switch name {
	case "judge":
		if generator != nil {
			return NewJudge(generator, logger)
		}
	case "crossencoder":
		if scorer != nil {
			return NewCrossEncoder(scorer)
		}
	}
	return None{}
}

func trim(candidates []domain.ScoredChunk, k int) []domain.ScoredChunk {
	if k <= 0 || len(candidates) <= k {
		return candidates
	}
	return candidates[:k]
}

// sortByScore orders descending; the stable sort keeps submission order for
// equal scores so a zero-scored batch preserves its original ranking.
func sortByScore(scored []domain.ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}
