package promptctx

import (
	"strings"
	"testing"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

func TestAssembleNumbersChunksWithMetadata(t *testing.T) {
	a := NewAssembler(0)
	results := []domain.ScoredChunk{
		{Chunk: &domain.Chunk{
			Source: domain.SourceStatement,
			Text:   "STATEMENT id=st-aug",
			Meta:   domain.ChunkMeta{YM: "2024-08", DtISO: "2024-08-31T00:00:00Z"},
		}, Score: 0.912},
		{Chunk: &domain.Chunk{
			Source: domain.SourceAgreement,
			Text:   "AGREEMENT: interest accrues daily",
		}, Score: 0.5},
	}

	out := a.Assemble(results, nil, "how much interest?", "", nil)

	if !strings.Contains(out, "[1] source=statement ym=2024-08 dt=2024-08-31T00:00:00Z score=0.912\nSTATEMENT id=st-aug") {
		t.Fatalf("first row malformed:\n%s", out)
	}
	if !strings.Contains(out, "[2] source=agreement score=0.500\n") {
		t.Fatalf("second row must omit empty ym/dt:\n%s", out)
	}
	if !strings.Contains(out, "Question: how much interest?") {
		t.Fatalf("question missing:\n%s", out)
	}
}

func TestAssembleCapsChunkText(t *testing.T) {
	a := NewAssembler(10)
	long := strings.Repeat("x", 50)
	results := []domain.ScoredChunk{
		{Chunk: &domain.Chunk{Source: domain.SourceTransaction, Text: long}, Score: 1},
	}

	out := a.Assemble(results, nil, "q", "", nil)
	if strings.Contains(out, strings.Repeat("x", 11)) {
		t.Fatal("chunk text must be capped at the configured rune limit")
	}
	if !strings.Contains(out, strings.Repeat("x", 10)) {
		t.Fatal("capped prefix must still appear")
	}
}

func TestAssemblePrependsMissingRules(t *testing.T) {
	a := NewAssembler(0)
	rule := &domain.Chunk{Source: domain.SourceSchema, Text: "SCHEMA: spend excludes payments"}
	results := []domain.ScoredChunk{
		{Chunk: &domain.Chunk{Source: domain.SourceTransaction, Text: "TRANSACTION id=tx-1"}, Score: 0.9},
	}

	out := a.Assemble(results, []*domain.Chunk{rule}, "q", "", nil)
	if !strings.Contains(out, "[1] source=schema score=0.000\nSCHEMA: spend excludes payments") {
		t.Fatalf("missing rule must be prepended at score 0:\n%s", out)
	}
	if !strings.Contains(out, "[2] source=transaction") {
		t.Fatalf("retrieved chunk must follow the rule:\n%s", out)
	}
}

func TestAssembleDoesNotDuplicatePresentRules(t *testing.T) {
	a := NewAssembler(0)
	rule := &domain.Chunk{Source: domain.SourceSchema, Text: "SCHEMA: rules"}
	results := []domain.ScoredChunk{{Chunk: rule, Score: 0.7}}

	out := a.Assemble(results, []*domain.Chunk{rule}, "q", "", nil)
	if strings.Count(out, "SCHEMA: rules") != 1 {
		t.Fatalf("rule already retrieved must appear once:\n%s", out)
	}
}

func TestAssembleTailAndInstructions(t *testing.T) {
	a := NewAssembler(0)
	results := []domain.ScoredChunk{
		{Chunk: &domain.Chunk{Source: domain.SourceAccount, Text: "ACCOUNT id=acc-1"}, Score: 1},
	}

	out := a.Assemble(results, nil, "q", "user: hi\nassistant: hello", []string{"Scope: this month.", "  "})
	if !strings.Contains(out, "Conversation (recent):\nuser: hi\nassistant: hello\n\n") {
		t.Fatalf("conversation tail missing:\n%s", out)
	}
	if !strings.HasPrefix(out, "Conversation (recent):") {
		t.Fatal("tail must precede the numbered context")
	}
	if !strings.Contains(out, "Scope: this month.") {
		t.Fatalf("instruction missing:\n%s", out)
	}
	if strings.Contains(out, "\n\n  \n") {
		t.Fatal("blank instructions must be skipped")
	}

	bare := a.Assemble(results, nil, "q", "   ", nil)
	if strings.Contains(bare, "Conversation (recent):") {
		t.Fatal("blank tail must not emit the conversation block")
	}
}

func TestRenderTail(t *testing.T) {
	if got := RenderTail(nil); got != "" {
		t.Fatalf("empty history must render empty, got %q", got)
	}
	got := RenderTail([]domain.ConversationMessage{
		{Role: "user", Content: "how much interest?"},
		{Role: "assistant", Content: "42.50 this cycle."},
	})
	want := "user: how much interest?\nassistant: 42.50 this cycle."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
