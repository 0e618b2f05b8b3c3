package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

func TestProviderSummarize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "A short summary."}
			}]
		}`))
	}))
	defer srv.Close()

	p := New(DefaultConfig().WithAPIKey("sk-test").WithBaseURL(srv.URL))
	got, err := p.Summarize(context.Background(), "Some long text.", summarizer.GenerateParams{MinLength: 5, MaxLength: 60})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got != "A short summary." {
		t.Fatalf("summary = %q", got)
	}
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", body["model"])
	}
	if body["max_completion_tokens"] != float64(60) {
		t.Errorf("max_completion_tokens = %v", body["max_completion_tokens"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", body["messages"])
	}
}

func TestProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig().WithAPIKey("sk-test").WithBaseURL(srv.URL)
	if _, err := New(cfg).Summarize(context.Background(), "text", summarizer.GenerateParams{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig().WithAPIKey("sk-test").WithBaseURL(srv.URL)
	cfg.MaxRetries = 0
	if _, err := New(cfg).Summarize(context.Background(), "text", summarizer.GenerateParams{}); err == nil {
		t.Fatal("expected API error")
	}
}
