package promptctx

import (
	"fmt"
	"strings"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

const defaultMaxChunkChars = 1100

// SystemPrompt restates the evidence discipline and the field-precedence and
// date policies for the generator. The same rules are also retrievable as the
// schema chunk.
const SystemPrompt = `You are a banking account copilot. Answer only from the numbered context; ` +
	`if the context is insufficient, say so briefly instead of guessing. Cite evidence numbers like [2]. ` +
	`Money amounts come from the context verbatim. ` +
	`For interest totals prefer, in order: AGGREGATE interest_from_statements_total, the statement interestCharged field, ` +
	`then the sum of interest-flagged transactions. ` +
	`Transaction dates: use transactionDateTime, falling back to postingDateTime; never authDateTime. ` +
	`Spend covers only debit outflows, excluding payments, refunds, credits, interest and fee reversals.`

// Assembler serializes the final chunk list into the bounded, numbered
// context block. Pure function of its inputs; the per-chunk cap lives here
// and only here — the corpus keeps full text.
type Assembler struct {
	MaxChunkChars int
}

func NewAssembler(maxChunkChars int) *Assembler {
	if maxChunkChars <= 0 {
		maxChunkChars = defaultMaxChunkChars
	}
	return &Assembler{MaxChunkChars: maxChunkChars}
}

// Assemble numbers the chunks 1-based with enough metadata for citation and
// audit, guaranteeing the rule chunks appear even when retrieval did not
// surface them.
func (a *Assembler) Assemble(results []domain.ScoredChunk, rules []*domain.Chunk, question, conversationTail string, instructions []string) string {
	final := ensureRules(results, rules)

	rows := make([]string, 0, len(final))
	for i, r := range final {
		rows = append(rows, fmt.Sprintf("[%d] source=%s%s%s score=%.3f\n%s",
			i+1,
			r.Chunk.Source,
			optionalField(" ym=", r.Chunk.Meta.YM),
			optionalField(" dt=", r.Chunk.Meta.DtISO),
			r.Score,
			truncateRunes(r.Chunk.Text, a.MaxChunkChars),
		))
	}

	var b strings.Builder
	if strings.TrimSpace(conversationTail) != "" {
		b.WriteString("Conversation (recent):\n")
		b.WriteString(strings.TrimSpace(conversationTail))
		b.WriteString("\n\n")
	}
	b.WriteString("Numbered Context:\n")
	b.WriteString(strings.Join(rows, "\n\n"))
	for _, instruction := range instructions {
		if strings.TrimSpace(instruction) == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(instruction)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer concisely, grounded only in the numbered context.")
	return b.String()
}

// ensureRules prepends any rule chunk missing from the retrieved set, so
// cross-record arithmetic policy is always visible to the generator.
func ensureRules(results []domain.ScoredChunk, rules []*domain.Chunk) []domain.ScoredChunk {
	present := make(map[*domain.Chunk]struct{}, len(results))
	for _, r := range results {
		present[r.Chunk] = struct{}{}
	}

	missing := make([]domain.ScoredChunk, 0, len(rules))
	for _, rule := range rules {
		if _, ok := present[rule]; !ok {
			missing = append(missing, domain.ScoredChunk{Chunk: rule, Score: 0})
		}
	}
	if len(missing) == 0 {
		return results
	}
	return append(missing, results...)
}

// RenderTail flattens recent messages (oldest first) into the conversation
// block passed to the generator.
func RenderTail(messages []domain.ConversationMessage) string {
	if len(messages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func optionalField(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
