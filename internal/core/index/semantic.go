package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

const embedBatchSize = 64

// SemanticIndex holds L2-normalized embeddings for every chunk and answers
// nearest-neighbor queries by inner product (cosine on normalized vectors).
type SemanticIndex struct {
	embedder ports.Embedder
	dim      int
	vectors  [][]float32
	chunks   []*domain.Chunk
}

// BuildSemanticIndex embeds every chunk through the injected embedder. The
// vector dimensionality is probed from the backend at build time; different
// embedding backends disagree on it.
func BuildSemanticIndex(ctx context.Context, embedder ports.Embedder, chunks []*domain.Chunk) (*SemanticIndex, error) {
	ix := &SemanticIndex{embedder: embedder, chunks: chunks}
	if len(chunks) == 0 {
		return ix, nil
	}

	probe, err := embedder.Embed(ctx, []string{"dimension-probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(probe) == 0 || len(probe[0]) == 0 {
		return nil, fmt.Errorf("probe embedding dimension: empty vector")
	}
	ix.dim = len(probe[0])

	ix.vectors = make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus batch: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed corpus batch: got %d vectors for %d texts", len(vectors), len(texts))
		}
		for _, v := range vectors {
			if len(v) != ix.dim {
				return nil, fmt.Errorf("embed corpus batch: vector dim %d, index dim %d", len(v), ix.dim)
			}
			ix.vectors = append(ix.vectors, l2Normalize(v))
		}
	}
	return ix, nil
}

func (ix *SemanticIndex) Size() int {
	return len(ix.vectors)
}

func (ix *SemanticIndex) Dim() int {
	return ix.dim
}

// Search embeds the query and returns the top-k chunks by cosine similarity.
// An empty index returns an empty list without calling the embedder.
func (ix *SemanticIndex) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if len(ix.vectors) == 0 || k == 0 {
		return nil, nil
	}
	if k < 0 || k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) != ix.dim {
		return nil, fmt.Errorf("embed query: unexpected vector shape")
	}
	q := l2Normalize(vectors[0])

	scores := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = dot(q, v)
	}

	order := make([]int, len(ix.vectors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]domain.ScoredChunk, 0, k)
	for _, i := range order[:k] {
		out = append(out, domain.ScoredChunk{Chunk: ix.chunks[i], Score: scores[i]})
	}
	return out, nil
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
