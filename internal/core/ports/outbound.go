package ports

import (
	"context"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// Embedder turns texts into fixed-length vectors. The output dimensionality
// is whatever the backend produces; callers probe it, never assume it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerGenerator is the opaque generation capability: final answer
// composition and, in judge-reranking mode, relevance scoring.
type AnswerGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	GenerateStream(ctx context.Context, system, user string, emit func(domain.StreamEvent) error) error
}

// RelevanceScorer scores (query, text) pairs through a cross-encoder model.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// BankingDataLoader reads the structured records of one data directory.
type BankingDataLoader interface {
	Load(ctx context.Context, dir string) (domain.Bundle, error)
}

// AgreementExtractor turns the cardholder agreement document into plain
// text. A missing document yields empty text, not an error.
type AgreementExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ConversationStore persists conversation state and messages.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	NextTurn(ctx context.Context, userID, conversationID string) (int, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.ConversationMessage, error)
}

// RefreshBus distributes corpus-refresh signals between instances.
type RefreshBus interface {
	PublishCorpusRefresh(ctx context.Context, reason string) error
	SubscribeCorpusRefresh(ctx context.Context, handler func(context.Context, string) error) error
}
