package ollama

import (
	"context"
	"log/slog"

	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

// FallbackEmbedder tries a secondary embedding model when the primary fails.
// Both indexes of one corpus build go through the same embedder instance, so
// a mid-build switch still yields a single consistent dimensionality only if
// the whole build retries; the corpus manager handles that by failing the
// build when dimensions disagree.
type FallbackEmbedder struct {
	primary   ports.Embedder
	secondary ports.Embedder
	logger    *slog.Logger
}

func NewFallbackEmbedder(primary, secondary ports.Embedder, logger *slog.Logger) *FallbackEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackEmbedder{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := f.primary.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if f.secondary == nil {
		return nil, err
	}
	f.logger.Warn("primary embedder failed, trying fallback model", "error", err)
	return f.secondary.Embed(ctx, texts)
}
