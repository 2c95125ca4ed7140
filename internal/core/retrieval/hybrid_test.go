package retrieval

import (
	"math"
	"testing"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

func chunk(text string) *domain.Chunk {
	return &domain.Chunk{Text: text, Source: domain.SourceTransaction}
}

func scored(c *domain.Chunk, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: c, Score: score}
}

func TestMergeHybridWeightsBothLists(t *testing.T) {
	a, b, c := chunk("a"), chunk("b"), chunk("c")
	vec := []domain.ScoredChunk{scored(a, 0.9), scored(b, 0.1)}
	lex := []domain.ScoredChunk{scored(c, 12.0), scored(b, 2.0)}

	out := MergeHybrid(vec, lex, 0.6, 10)
	if len(out) != 3 {
		t.Fatalf("expected 3 merged results, got %d", len(out))
	}
	// Normalized: a=1.0 vec, c=1.0 lex, b=0 in both.
	if out[0].Chunk != a || out[1].Chunk != c {
		t.Fatalf("unexpected order: %q then %q", out[0].Chunk.Text, out[1].Chunk.Text)
	}
	if math.Abs(out[0].Score-0.6) > 1e-9 || math.Abs(out[1].Score-0.4) > 1e-9 {
		t.Fatalf("unexpected scores: %f, %f", out[0].Score, out[1].Score)
	}
	if out[2].Chunk != b || out[2].Score != 0 {
		t.Fatalf("expected b with 0, got %q %f", out[2].Chunk.Text, out[2].Score)
	}
}

func TestMergeHybridAlphaDegeneracies(t *testing.T) {
	a, b := chunk("a"), chunk("b")
	vec := []domain.ScoredChunk{scored(a, 0.9), scored(b, 0.2)}
	lex := []domain.ScoredChunk{scored(b, 5.0), scored(a, 1.0)}

	pureVec := MergeHybrid(vec, lex, 1.0, 10)
	if pureVec[0].Chunk != a {
		t.Fatal("alpha=1 must follow the semantic ranking")
	}
	pureLex := MergeHybrid(vec, lex, 0.0, 10)
	if pureLex[0].Chunk != b {
		t.Fatal("alpha=0 must follow the lexical ranking")
	}

	clamped := MergeHybrid(vec, lex, 7.0, 10)
	if clamped[0].Chunk != pureVec[0].Chunk {
		t.Fatal("alpha above 1 must clamp to 1")
	}
}

func TestMergeHybridZeroVarianceNormalizesToZero(t *testing.T) {
	a, b := chunk("a"), chunk("b")
	lex := []domain.ScoredChunk{scored(a, 3.0), scored(b, 3.0)}

	out := MergeHybrid(nil, lex, 0.5, 10)
	for _, r := range out {
		if r.Score != 0 {
			t.Fatalf("zero-variance list must normalize to 0, got %f", r.Score)
		}
	}
	// Ties keep first-seen order.
	if out[0].Chunk != a || out[1].Chunk != b {
		t.Fatal("tie order must be first-seen")
	}
}

func TestMergeHybridDeterministic(t *testing.T) {
	a, b, c := chunk("a"), chunk("b"), chunk("c")
	vec := []domain.ScoredChunk{scored(a, 0.5), scored(b, 0.5)}
	lex := []domain.ScoredChunk{scored(c, 1.0), scored(a, 1.0)}

	first := MergeHybrid(vec, lex, 0.5, 10)
	second := MergeHybrid(vec, lex, 0.5, 10)
	for i := range first {
		if first[i].Chunk != second[i].Chunk {
			t.Fatalf("merge not deterministic at %d", i)
		}
	}
}

func TestMergeHybridTruncatesToK(t *testing.T) {
	a, b, c := chunk("a"), chunk("b"), chunk("c")
	vec := []domain.ScoredChunk{scored(a, 3), scored(b, 2), scored(c, 1)}

	out := MergeHybrid(vec, nil, 1.0, 2)
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(out))
	}
}

func TestMergeHybridEmptyLexicalKeepsSemanticRanking(t *testing.T) {
	a, b, c := chunk("a"), chunk("b"), chunk("c")
	vec := []domain.ScoredChunk{scored(a, 3), scored(b, 2), scored(c, 1)}

	for _, alpha := range []float64{0, 0.3, 0.7, 1.0} {
		out := MergeHybrid(vec, nil, alpha, 3)
		if out[0].Chunk != a || out[1].Chunk != b || out[2].Chunk != c {
			t.Fatalf("alpha=%.1f: semantic-only merge must keep the semantic ranking", alpha)
		}
	}
}
