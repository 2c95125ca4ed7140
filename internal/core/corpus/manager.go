package corpus

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/index"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
)

// Built is one immutable corpus build: the ordered chunk list plus both
// indexes over it. It is replaced wholesale when the fingerprint changes.
type Built struct {
	Fingerprint string
	BuiltAt     time.Time
	Chunks      []*domain.Chunk
	Semantic    *index.SemanticIndex
	Lexical     *index.LexicalIndex
}

// RuleChunks returns the schema/rule guidance chunks of this build, used by
// the assembler to guarantee their presence in the final context.
func (b *Built) RuleChunks() []*domain.Chunk {
	out := make([]*domain.Chunk, 0, 1)
	for _, chunk := range b.Chunks {
		if chunk.Source == domain.SourceSchema {
			out = append(out, chunk)
		}
	}
	return out
}

// Manager caches builds by data-directory fingerprint with at most one build
// in flight per fingerprint; racing callers share the same result.
type Manager struct {
	dataDir       string
	agreementPath string
	loader        ports.BankingDataLoader
	agreement     ports.AgreementExtractor
	embedder      ports.Embedder
	builder       *Builder
	logger        *slog.Logger
	onBuild       func(chunks int, duration time.Duration, err error)

	group   singleflight.Group
	mu      sync.RWMutex
	current *Built
}

func NewManager(
	dataDir string,
	loader ports.BankingDataLoader,
	agreement ports.AgreementExtractor,
	embedder ports.Embedder,
	builder *Builder,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dataDir:       dataDir,
		agreementPath: filepath.Join(dataDir, "agreement.pdf"),
		loader:        loader,
		agreement:     agreement,
		embedder:      embedder,
		builder:       builder,
		logger:        logger,
	}
}

// WithAgreementPath points the build at an agreement document outside the
// default <dataDir>/agreement.pdf location.
func (m *Manager) WithAgreementPath(path string) *Manager {
	if path != "" {
		m.agreementPath = path
	}
	return m
}

// WithBuildObserver registers a callback invoked after every build attempt,
// successful or not. Used for build metrics.
func (m *Manager) WithBuildObserver(fn func(chunks int, duration time.Duration, err error)) *Manager {
	m.onBuild = fn
	return m
}

// Ensure returns the build for the current fingerprint, building it at most
// once no matter how many requests race.
func (m *Manager) Ensure(ctx context.Context) (*Built, error) {
	fingerprint, err := Fingerprint(m.dataDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "fingerprint data dir", err)
	}

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != nil && current.Fingerprint == fingerprint {
		return current, nil
	}

	v, err, _ := m.group.Do(fingerprint, func() (any, error) {
		m.mu.RLock()
		cached := m.current
		m.mu.RUnlock()
		if cached != nil && cached.Fingerprint == fingerprint {
			return cached, nil
		}

		built, err := m.build(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.current = built
		m.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Built), nil
}

// Invalidate drops the cached build; the next Ensure re-checks and rebuilds.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *Manager) build(ctx context.Context, fingerprint string) (built *Built, err error) {
	start := time.Now()
	defer func() {
		if m.onBuild == nil {
			return
		}
		chunks := 0
		if built != nil {
			chunks = len(built.Chunks)
		}
		m.onBuild(chunks, time.Since(start), err)
	}()

	bundle, err := m.loader.Load(ctx, m.dataDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "load banking data", err)
	}

	agreementText, extractErr := m.agreement.Extract(ctx, m.agreementPath)
	if extractErr != nil {
		m.logger.Warn("agreement extraction failed, continuing without it", "error", extractErr)
		agreementText = ""
	}

	chunks := m.builder.Build(bundle, agreementText)

	semantic, err := index.BuildSemanticIndex(ctx, m.embedder, chunks)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "build semantic index", err)
	}
	lexical := index.BuildLexicalIndex(chunks)

	built = &Built{
		Fingerprint: fingerprint,
		BuiltAt:     time.Now().UTC(),
		Chunks:      chunks,
		Semantic:    semantic,
		Lexical:     lexical,
	}
	m.logger.Info("corpus built",
		"fingerprint", fingerprint,
		"chunks", len(chunks),
		"embedding_dim", semantic.Dim(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return built, nil
}

func (m *Manager) DataDir() string {
	return m.dataDir
}
