package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentdesk/banking-copilot/internal/core/corpus"
	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
	"github.com/agentdesk/banking-copilot/internal/core/promptctx"
	"github.com/agentdesk/banking-copilot/internal/core/rerank"
	"github.com/agentdesk/banking-copilot/internal/core/retrieval"
)

// FallbackAnswer is returned when generation fails; the turn itself
// succeeds so conversation history is preserved.
const FallbackAnswer = "Sorry — I couldn't compose an answer just now. Your question was not lost; please try again."

// Options are the caller-facing retrieval knobs. They are validated and
// clamped at the configuration boundary, not inside the merge algorithm.
type Options struct {
	UseHybrid       bool
	Alpha           float64
	CandidatesN     int
	FinalK          int
	FreshnessLambda float64
}

func (o Options) normalized() Options {
	if o.Alpha < 0 {
		o.Alpha = 0
	}
	if o.Alpha > 1 {
		o.Alpha = 1
	}
	if o.CandidatesN <= 0 {
		o.CandidatesN = 40
	}
	if o.FinalK <= 0 {
		o.FinalK = 8
	}
	if o.FreshnessLambda < 0 {
		o.FreshnessLambda = 0
	}
	return o
}

// AnswerUseCase runs the per-turn pipeline: ensure corpus, search both
// indexes concurrently, merge, filter, rerank, assemble, generate.
type AnswerUseCase struct {
	corpus    *corpus.Manager
	reranker  rerank.Strategy
	generator ports.AnswerGenerator
	assembler *promptctx.Assembler
	policy    domain.RetrievalPolicy
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

func NewAnswerUseCase(
	corpusManager *corpus.Manager,
	reranker rerank.Strategy,
	generator ports.AnswerGenerator,
	assembler *promptctx.Assembler,
	policy domain.RetrievalPolicy,
	opts Options,
	logger *slog.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		corpus:    corpusManager,
		reranker:  reranker,
		generator: generator,
		assembler: assembler,
		policy:    policy,
		opts:      opts.normalized(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// WithClock overrides the reference clock; used by tests and deployments
// pinned to a non-wall-clock "now".
func (uc *AnswerUseCase) WithClock(now func() time.Time) *AnswerUseCase {
	uc.now = now
	return uc
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question, conversationTail string) (*domain.Answer, error) {
	built, err := uc.corpus.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	intent := domain.DetectIntent(question)
	window, scoped := retrieval.InferWindow(question, intent, uc.policy, now)

	candidates, err := uc.retrieve(ctx, built, question)
	if err != nil {
		return nil, err
	}
	candidates = retrieval.ApplyFreshness(candidates, uc.opts.FreshnessLambda, now)
	if scoped {
		candidates = retrieval.FilterSpendWindow(candidates, window)
	}

	var instructions []string
	if scoped {
		instructions = append(instructions, window.Instruction())
	}
	if intent == domain.IntentInterestWhy {
		if cycle, ok := retrieval.FindInterestCycle(built.Chunks, 0); ok {
			candidates = prependUnique(cycle.Evidence(), candidates)
			instructions = append(instructions, cycle.Instruction())
		}
	}

	final, err := uc.reranker.Rerank(ctx, question, candidates, uc.opts.FinalK)
	if err != nil {
		uc.logger.Warn("rerank failed, keeping merged order", "strategy", uc.reranker.Name(), "error", err)
		final = candidates
		if len(final) > uc.opts.FinalK {
			final = final[:uc.opts.FinalK]
		}
	}

	user := uc.assembler.Assemble(final, built.RuleChunks(), question, conversationTail, instructions)
	text, err := uc.generator.Generate(ctx, promptctx.SystemPrompt, user)
	if err != nil {
		uc.logger.Error("answer generation failed", "intent", intent, "error", err)
		return &domain.Answer{Text: FallbackAnswer, Evidence: final}, nil
	}

	uc.logger.Info("turn answered",
		"intent", intent,
		"scoped_to_window", scoped,
		"candidates", len(candidates),
		"evidence", len(final),
	)
	return &domain.Answer{Text: text, Evidence: final}, nil
}

// prependUnique puts the pinned evidence first, dropping later duplicates by
// chunk identity so pinned chunks cannot appear twice.
func prependUnique(pinned, candidates []domain.ScoredChunk) []domain.ScoredChunk {
	present := make(map[*domain.Chunk]struct{}, len(pinned))
	out := make([]domain.ScoredChunk, 0, len(pinned)+len(candidates))
	for _, p := range pinned {
		if _, ok := present[p.Chunk]; ok {
			continue
		}
		present[p.Chunk] = struct{}{}
		out = append(out, p)
	}
	for _, c := range candidates {
		if _, ok := present[c.Chunk]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// retrieve runs semantic and lexical search concurrently and merges them.
// A failing semantic search (embedding backend down) degrades a hybrid turn
// to lexical-only ranking; with hybrid disabled there is nothing left to
// rank and the turn is retrieval-unavailable.
func (uc *AnswerUseCase) retrieve(ctx context.Context, built *corpus.Built, question string) ([]domain.ScoredChunk, error) {
	var (
		wg        sync.WaitGroup
		vec       []domain.ScoredChunk
		vecErr    error
		lex       []domain.ScoredChunk
		alpha     = uc.opts.Alpha
		useHybrid = uc.opts.UseHybrid
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vec, vecErr = built.Semantic.Search(ctx, question, uc.opts.CandidatesN)
	}()
	if useHybrid {
		lex = built.Lexical.Search(question, uc.opts.CandidatesN)
	}
	wg.Wait()

	if vecErr != nil {
		if !useHybrid {
			return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "semantic search", vecErr)
		}
		uc.logger.Warn("semantic search failed, degrading to lexical-only", "error", vecErr)
		vec = nil
		alpha = 0
	}
	if !useHybrid {
		// Pure semantic ranking still goes through the merger for its
		// normalization and stable ordering.
		alpha = 1
	}
	return retrieval.MergeHybrid(vec, lex, alpha, uc.opts.CandidatesN), nil
}
