package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1, BreakerEnabled: false})
	return New(server.URL, "gen-model", "embed-model", executor), server
}

func TestEmbedderSendsBatchAndParsesVectors(t *testing.T) {
	var gotPath string
	var gotRequest map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	})

	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if gotPath != "/api/embed" {
		t.Fatalf("expected /api/embed, got %s", gotPath)
	}
	if gotRequest["model"] != "embed-model" {
		t.Fatalf("expected embed model in request, got %v", gotRequest["model"])
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors shape: %v", vectors)
	}
}

func TestEmbedderRejectsVectorCountMismatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1}},
		})
	})

	if _, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestEmbedderEmptyInputSkipsBackend(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	vectors, err := NewEmbedder(client).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vectors != nil || called {
		t.Fatal("empty input must not reach the backend")
	}
}

func TestGeneratorChatRoundTrip(t *testing.T) {
	var gotRequest struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "  the answer  "},
		})
	})

	text, err := NewGenerator(client).Generate(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "the answer" {
		t.Fatalf("expected trimmed answer, got %q", text)
	}
	if gotRequest.Stream {
		t.Fatal("expected stream=false")
	}
	if len(gotRequest.Messages) != 2 || gotRequest.Messages[0].Role != "system" || gotRequest.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", gotRequest.Messages)
	}
}

func TestGeneratorStreamEmitsDeltasAndDone(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		frames := []string{
			`{"message":{"content":"hel"},"done":false}`,
			`{"message":{"content":"lo"},"done":false}`,
			`{"message":{"content":""},"done":true}`,
		}
		_, _ = w.Write([]byte(strings.Join(frames, "\n")))
	})

	var deltas []string
	done := false
	err := NewGenerator(client).GenerateStream(context.Background(), "sys", "usr", func(ev domain.StreamEvent) error {
		if ev.Done {
			done = true
			return nil
		}
		deltas = append(deltas, ev.Delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if strings.Join(deltas, "") != "hello" {
		t.Fatalf("expected hello, got %q", strings.Join(deltas, ""))
	}
	if !done {
		t.Fatal("expected terminal done event")
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := NewGenerator(client).Generate(context.Background(), "sys", "usr")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary classification, got %v", err)
	}
}

func TestClientErrorIsNotTemporary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	})

	_, err := NewGenerator(client).Generate(context.Background(), "sys", "usr")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("4xx must not be temporary: %v", err)
	}
}

func TestFallbackEmbedderSwitchesOnPrimaryFailure(t *testing.T) {
	failing, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	healthy, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}}})
	})

	embedder := NewFallbackEmbedder(NewEmbedder(failing), NewEmbedder(healthy), nil)
	vectors, err := embedder.Embed(context.Background(), []string{"q"})
	if err != nil {
		t.Fatalf("fallback embed: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected one vector, got %d", len(vectors))
	}
}
