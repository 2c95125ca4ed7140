package index

import (
	"math"
	"sort"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// LexicalIndex is a BM25 (Okapi) ranking structure over the corpus. It
// covers the exact-term recall that embeddings miss: record ids, amounts,
// merchant names.
type LexicalIndex struct {
	chunks   []*domain.Chunk
	termFreq []map[string]int
	docLen   []int
	avgLen   float64
	docFreq  map[string]int
}

func BuildLexicalIndex(chunks []*domain.Chunk) *LexicalIndex {
	ix := &LexicalIndex{
		chunks:   chunks,
		termFreq: make([]map[string]int, len(chunks)),
		docLen:   make([]int, len(chunks)),
		docFreq:  make(map[string]int),
	}

	totalLen := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		ix.termFreq[i] = tf
		ix.docLen[i] = len(tokens)
		totalLen += len(tokens)
		for token := range tf {
			ix.docFreq[token]++
		}
	}
	if len(chunks) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(chunks))
	}
	return ix
}

func (ix *LexicalIndex) Size() int {
	return len(ix.chunks)
}

// Search returns the top-k chunks by BM25 score. Query tokens absent from
// the corpus vocabulary contribute nothing; the result may be all-zero but
// is never an error.
func (ix *LexicalIndex) Search(query string, k int) []domain.ScoredChunk {
	if len(ix.chunks) == 0 || k == 0 {
		return nil
	}
	if k < 0 || k > len(ix.chunks) {
		k = len(ix.chunks)
	}

	queryTokens := Tokenize(query)
	scores := make([]float64, len(ix.chunks))
	n := float64(len(ix.chunks))
	for _, token := range queryTokens {
		df, ok := ix.docFreq[token]
		if !ok {
			continue
		}
		idf := math.Log(1.0 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i := range ix.chunks {
			tf := float64(ix.termFreq[i][token])
			if tf == 0 {
				continue
			}
			norm := 1.0 - bm25B + bm25B*float64(ix.docLen[i])/ix.avgLen
			scores[i] += idf * (tf * (bm25K1 + 1.0)) / (tf + bm25K1*norm)
		}
	}

	order := make([]int, len(ix.chunks))
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
	return out
}
