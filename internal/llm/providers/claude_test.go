package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"car-advisor/internal/config"
	"car-advisor/internal/llm/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *ClaudeProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"
	return NewClaudeProvider(cfg, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestClaudeCompleteSendsPromptAndJoinsText(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "{\"models\":"}, {"type": "text", "text": "[]}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 5, "output_tokens": 3}
		}`)
	})

	got, err := p.Complete(context.Background(), types.CompletionRequest{
		System: "system prompt",
		Prompt: "rodinné kombi",
		Model:  "claude-3-7-sonnet-latest",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"models":[]}` {
		t.Errorf("Complete = %q", got)
	}
	if body["model"] != "claude-3-7-sonnet-latest" {
		t.Errorf("model = %v", body["model"])
	}
	if !strings.Contains(string(mustJSON(body["messages"])), "rodinné kombi") {
		t.Errorf("prompt not sent: %v", body["messages"])
	}
	if !strings.Contains(string(mustJSON(body["system"])), "system prompt") {
		t.Errorf("system not sent: %v", body["system"])
	}
}

func TestClaudeCompleteAPIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	})

	if _, err := p.Complete(context.Background(), types.CompletionRequest{Prompt: "x"}); err == nil {
		t.Error("expected API error")
	}
}

func TestClaudeCompleteRequiresAPIKey(t *testing.T) {
	p := NewClaudeProvider(config.Default())
	if _, err := p.Complete(context.Background(), types.CompletionRequest{Prompt: "x"}); err == nil {
		t.Error("expected missing key error")
	}
	if err := p.IsHealthy(context.Background()); err == nil {
		t.Error("expected unhealthy without key")
	}
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
