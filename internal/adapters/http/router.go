package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/banking-copilot/internal/core/corpus"
	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
	"github.com/agentdesk/banking-copilot/internal/core/promptctx"
	"github.com/agentdesk/banking-copilot/internal/core/usecase"
	"github.com/agentdesk/banking-copilot/internal/observability/metrics"
)

const serviceName = "banking-copilot-api"

// Router owns the HTTP surface: the chat turn endpoint, the operational
// corpus rebuild trigger, health and metrics.
type Router struct {
	answerer      ports.QuestionAnswerer
	conversations ports.ConversationStore
	corpus        *corpus.Manager
	bus           ports.RefreshBus
	metrics       *metrics.HTTPServerMetrics
	rerankName    string
	tailMessages  int
	rateRPS       float64
	rateBurst     int
	maxInFlight   int
	logger        *slog.Logger
}

type RouterOptions struct {
	Answerer      ports.QuestionAnswerer
	Conversations ports.ConversationStore
	Corpus        *corpus.Manager
	Bus           ports.RefreshBus
	Metrics       *metrics.HTTPServerMetrics
	RerankName    string
	TailMessages  int
	RateLimitRPS  float64
	RateBurst     int
	MaxInFlight   int
	Logger        *slog.Logger
}

func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TailMessages < 0 {
		opts.TailMessages = 0
	}
	return &Router{
		answerer:      opts.Answerer,
		conversations: opts.Conversations,
		corpus:        opts.Corpus,
		bus:           opts.Bus,
		metrics:       opts.Metrics,
		rerankName:    opts.RerankName,
		tailMessages:  opts.TailMessages,
		rateRPS:       opts.RateLimitRPS,
		rateBurst:     opts.RateBurst,
		maxInFlight:   opts.MaxInFlight,
		logger:        logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/corpus/rebuild", rt.rebuildCorpus)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	}
	if rt.rateRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateRPS, rt.rateBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Question       string `json:"question"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type evidenceRow struct {
	Source string  `json:"source"`
	YM     string  `json:"ym,omitempty"`
	Dt     string  `json:"dt,omitempty"`
	Score  float64 `json:"score"`
}

type chatResponse struct {
	Answer         string        `json:"answer"`
	ConversationID string        `json:"conversation_id"`
	Turn           int           `json:"turn"`
	Evidence       []evidenceRow `json:"evidence"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = "local"
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx := r.Context()
	if _, err := rt.conversations.EnsureConversation(ctx, userID, conversationID); err != nil {
		rt.fail(w, r, "ensure conversation", err)
		return
	}
	turn, err := rt.conversations.NextTurn(ctx, userID, conversationID)
	if err != nil {
		rt.fail(w, r, "next turn", err)
		return
	}
	tail, err := rt.conversations.ListRecentMessages(ctx, userID, conversationID, rt.tailMessages)
	if err != nil {
		rt.fail(w, r, "load conversation tail", err)
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(ctx, req.Question, promptctx.RenderTail(tail))
	if err != nil {
		rt.fail(w, r, "answer", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordTurn(serviceName, "/v1/chat", rt.rerankName, len(answer.Evidence), time.Since(start))
		if answer.Text == usecase.FallbackAnswer {
			rt.metrics.RecordGenerationFallback(serviceName, "/v1/chat")
		}
	}

	rt.appendMessage(ctx, userID, conversationID, "user", req.Question, turn)
	rt.appendMessage(ctx, userID, conversationID, "assistant", answer.Text, turn)

	evidence := make([]evidenceRow, 0, len(answer.Evidence))
	for _, e := range answer.Evidence {
		evidence = append(evidence, evidenceRow{
			Source: string(e.Chunk.Source),
			YM:     e.Chunk.Meta.YM,
			Dt:     e.Chunk.Meta.DtISO,
			Score:  e.Score,
		})
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         answer.Text,
		ConversationID: conversationID,
		Turn:           turn,
		Evidence:       evidence,
	})
}

// appendMessage persists one side of a turn. Persistence failure is logged,
// not surfaced: the answer is already computed and must reach the caller.
func (rt *Router) appendMessage(ctx context.Context, userID, conversationID, role, content string, turn int) {
	err := rt.conversations.AppendMessage(ctx, domain.ConversationMessage{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Turn:           turn,
	})
	if err != nil {
		rt.logger.Warn("append message failed", "role", role, "conversation_id", conversationID, "error", err)
	}
}

func (rt *Router) rebuildCorpus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rt.corpus.Invalidate()
	if rt.bus != nil {
		if err := rt.bus.PublishCorpusRefresh(r.Context(), "operator rebuild request"); err != nil {
			rt.logger.Warn("publish corpus refresh failed", "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuild scheduled"})
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed", "operation", operation, "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
