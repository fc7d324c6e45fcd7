package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vitorsj/lawyerless/backend/config"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func newTestLLM(baseURL string, retries int) *LLMService {
	return NewLLMService(&config.LLMConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "test-model",
		Temperature:    0.1,
		TimeoutSeconds: 5,
		MaxRetries:     retries,
	})
}

func TestCompleteJSON(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("Expected test-model, got %v", req["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatReply(`{"answer":"ok"}`)))
	}))
	defer server.Close()

	llm := newTestLLM(server.URL, 1)
	content, err := llm.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"answer":"ok"}` {
		t.Errorf("Unexpected content: %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("Expected /chat/completions, got %q", gotPath)
	}
}

func TestCompleteJSONRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chatReply("recovered")))
	}))
	defer server.Close()

	llm := newTestLLM(server.URL, 3)
	content, err := llm.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if content != "recovered" {
		t.Errorf("Unexpected content: %q", content)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestCompleteJSONNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	llm := newTestLLM(server.URL, 3)
	if _, err := llm.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call for a non-retryable status, got %d", calls)
	}
}

func TestCompleteJSONExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	llm := newTestLLM(server.URL, 2)
	_, err := llm.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestStripJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripJSON(tt.in); got != tt.want {
			t.Errorf("stripJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
