package ports

import (
	"context"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for one retrieval-grounded turn.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, conversationTail string) (*domain.Answer, error)
}
