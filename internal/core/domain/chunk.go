package domain

// SourceKind tags chunk provenance.
type SourceKind string

const (
	SourceAccount     SourceKind = "account"
	SourceStatement   SourceKind = "statement"
	SourceTransaction SourceKind = "transaction"
	SourcePayment     SourceKind = "payment"
	SourceAgreement   SourceKind = "agreement"
	SourceAggregate   SourceKind = "aggregate"
	SourceSchema      SourceKind = "schema"
)

// ChunkMeta separates the keys every chunk honors (ID, YM, DtISO) from
// source-specific extras such as spend_candidate, debit or metric.
type ChunkMeta struct {
	ID    string         `json:"id,omitempty"`
	YM    string         `json:"ym,omitempty"`
	DtISO string         `json:"dt_iso,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

func (m ChunkMeta) BoolExtra(key string) bool {
	if m.Extra == nil {
		return false
	}
	v, ok := m.Extra[key].(bool)
	return ok && v
}

func (m ChunkMeta) FloatExtra(key string) float64 {
	if m.Extra == nil {
		return 0
	}
	v, _ := m.Extra[key].(float64)
	return v
}

func (m ChunkMeta) StringExtra(key string) string {
	if m.Extra == nil {
		return ""
	}
	v, _ := m.Extra[key].(string)
	return v
}

// Chunk is the atomic retrievable evidence unit. Chunks are immutable once
// the corpus is built; merge identity is the chunk pointer, not text equality.
type Chunk struct {
	Text   string     `json:"text"`
	Source SourceKind `json:"source"`
	Meta   ChunkMeta  `json:"meta"`
}

// ScoredChunk attaches a stage-local relevance score to a chunk. Scores are
// only comparable within the stage that produced them.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is the user-facing result of one turn.
type Answer struct {
	Text     string        `json:"text"`
	Evidence []ScoredChunk `json:"evidence"`
}
