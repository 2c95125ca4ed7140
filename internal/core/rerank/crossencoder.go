package rerank

import (
	"context"
	"fmt"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

// CrossEncoder scores every (query, chunk text) pair through a pretrained
// relevance model behind the RelevanceScorer port. Deterministic given model
// weights; higher is more relevant.
type CrossEncoder struct {
	scorer ports.RelevanceScorer
}

func NewCrossEncoder(scorer ports.RelevanceScorer) *CrossEncoder {
	return &CrossEncoder{scorer: scorer}
}

func (c *CrossEncoder) Name() string { return "crossencoder" }

func (c *CrossEncoder) Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, k int) ([]domain.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		texts = append(texts, candidate.Chunk.Text)
	}

	scores, err := c.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder score: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("cross-encoder score: got %d scores for %d candidates", len(scores), len(candidates))
	}

	scored := make([]domain.ScoredChunk, 0, len(candidates))
	for i, candidate := range candidates {
		scored = append(scored, domain.ScoredChunk{Chunk: candidate.Chunk, Score: scores[i]})
	}
	sortByScore(scored)
	return trim(scored, k), nil
}
