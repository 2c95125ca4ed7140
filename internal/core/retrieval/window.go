package retrieval

import (
	"fmt"
	"time"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// Window is an inclusive UTC time range applied to spend queries.
type Window struct {
	Start time.Time
	End   time.Time
}

// Instruction states the inferred scoping explicitly for the generator, so
// the final answer can say "this month" instead of guessing silently.
func (w Window) Instruction() string {
	return fmt.Sprintf(
		"Scope: the question named no timeframe, so it covers the current calendar month, %s through %s (UTC). State this scope as \"this month\" in the answer.",
		w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"),
	)
}

func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// InferWindow applies the default-timeframe rule: a spend/top-merchant query
// that names no timeframe is scoped to the current calendar month, from the
// first day through now. Queries with explicit timeframe markers are left to
// the generator to interpret against the retrieved evidence.
func InferWindow(query string, intent domain.Intent, policy domain.RetrievalPolicy, now time.Time) (Window, bool) {
	if intent != domain.IntentSpend {
		return Window{}, false
	}
	if policy.HasTimeframeMarker(query) {
		return Window{}, false
	}

	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: now}, true
}

// FilterSpendWindow keeps only spend-candidate transactions whose canonical
// date falls inside the window. Non-transaction chunks pass through so the
// business rules stay visible to the generator. A transaction whose date
// cannot be parsed is dropped rather than admitted into a dated window.
func FilterSpendWindow(results []domain.ScoredChunk, w Window) []domain.ScoredChunk {
	if len(results) == 0 {
		return results
	}

	out := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Chunk.Source != domain.SourceTransaction {
			out = append(out, r)
			continue
		}
		if !r.Chunk.Meta.BoolExtra("spend_candidate") {
			continue
		}
		t, ok := domain.ParseISOTime(r.Chunk.Meta.DtISO)
		if !ok {
			continue
		}
		if w.Contains(t) {
			out = append(out, r)
		}
	}
	return out
}
