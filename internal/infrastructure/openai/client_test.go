package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "sk-test", "gpt-4o-mini", "text-embedding-3-small", 1536, nil)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		var req struct {
			Model      string   `json:"model"`
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Dimensions != 1536 {
			t.Errorf("expected dimensions 1536, got %d", req.Dimensions)
		}

		// Answer out of order; the client must reassemble by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{2}},
				{"index": 0, "embedding": []float32{1}},
			},
		})
	})

	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Fatalf("vectors not reordered by index: %v", vectors)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
		})
	})

	if _, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedEmptyInputSkipsRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})

	vectors, err := NewEmbedder(client).Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil/nil for empty input, got %v/%v", vectors, err)
	}
	if called {
		t.Fatal("no request expected for empty input")
	}
}

func TestGenerateAnswerSendsDeterministicRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.Temperature != 0 {
			t.Errorf("unexpected model/temperature: %s/%v", req.Model, req.Temperature)
		}
		if len(req.Messages) != 1 {
			t.Errorf("expected a single prompt message, got %d", len(req.Messages))
		} else {
			content := req.Messages[0].Content
			if !strings.Contains(content, "Question: why?") {
				t.Errorf("prompt missing the question: %q", content)
			}
			if !strings.Contains(content, "retrieved context here") {
				t.Errorf("prompt missing the context: %q", content)
			}
			if !strings.Contains(content, domain.FallbackAnswer) {
				t.Errorf("prompt missing the fallback instruction: %q", content)
			}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  the answer  "}},
			},
		})
	})

	answer, err := NewGenerator(client).GenerateAnswer(context.Background(), "why?", "retrieved context here")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
}

func TestGenerateAnswerNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	if _, err := NewGenerator(client).GenerateAnswer(context.Background(), "q", "c"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	})

	_, err := NewEmbedder(client).EmbedQuery(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("5xx should surface as a temporary error, got %v", err)
	}
}

func TestClientErrorIsNotTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	})

	_, err := NewEmbedder(client).EmbedQuery(context.Background(), "q")
	if err == nil {
		t.Fatal("expected an error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("4xx must not be temporary, got %v", err)
	}
}
