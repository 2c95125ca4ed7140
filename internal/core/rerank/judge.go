package rerank

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

const (
	defaultJudgeBatchSize  = 20
	judgeCandidateMaxChars = 1200

	judgeSystemPrompt = `You score relevance between 0.0 and 1.0. Return JSON: {"scores":[number,...]} only.`
)

// Judge asks the generation capability to score candidate relevance in
// batches. Any malformed judge output degrades that batch to all-zero scores
// with every candidate preserved; the pipeline loses the reranking benefit,
// never the candidates.
type Judge struct {
	generator ports.AnswerGenerator
	batchSize int
	logger    *slog.Logger
}

func NewJudge(generator ports.AnswerGenerator, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{
		generator: generator,
		batchSize: defaultJudgeBatchSize,
		logger:    logger,
	}
}

func (j *Judge) Name() string { return "judge" }

func (j *Judge) Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, k int) ([]domain.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(candidates))
	for start := 0; start < len(candidates); start += j.batchSize {
		end := start + j.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		scores := j.scoreBatch(ctx, query, batch)
		for i, candidate := range batch {
			scored = append(scored, domain.ScoredChunk{Chunk: candidate.Chunk, Score: scores[i]})
		}
	}

	sortByScore(scored)
	return trim(scored, k), nil
}

func (j *Judge) scoreBatch(ctx context.Context, query string, batch []domain.ScoredChunk) []float64 {
	scores := make([]float64, len(batch))

	texts := make([]string, 0, len(batch))
	for _, candidate := range batch {
		texts = append(texts, truncateRunes(candidate.Chunk.Text, judgeCandidateMaxChars))
	}
	payload, err := json.Marshal(map[string]any{"query": query, "candidates": texts})
	if err != nil {
		return scores
	}
	user := "Score each candidate for relevance to the query (0.0-1.0). " +
		"Respond ONLY as JSON object with 'scores' list in same order.\n" + string(payload)

	response, err := j.generator.Generate(ctx, judgeSystemPrompt, user)
	if err != nil {
		j.logger.Warn("judge scoring failed, zero-scoring batch", "batch_size", len(batch), "error", err)
		return scores
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &parsed); err != nil {
		j.logger.Warn("judge response not parseable, zero-scoring batch", "batch_size", len(batch), "error", err)
		return scores
	}
	for i := range batch {
		if i < len(parsed.Scores) {
			scores[i] = clamp01(parsed.Scores[i])
		}
	}
	return scores
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
