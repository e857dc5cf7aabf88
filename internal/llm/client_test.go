package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lazypower/keepstreak/internal/config"
	"github.com/lazypower/keepstreak/internal/habit"
)

func TestNewClientClaudeCLI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "claude-cli", Model: "haiku"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*ClaudeCLI); !ok {
		t.Errorf("expected *ClaudeCLI, got %T", client)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key", Model: "claude-haiku-4-5-20251001"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientUnknown(t *testing.T) {
	cfg := config.LLMConfig{Provider: "gpt"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestEnabled(t *testing.T) {
	for provider, want := range map[string]bool{"": false, "none": false, "ollama": true} {
		if got := Enabled(config.LLMConfig{Provider: provider}); got != want {
			t.Errorf("Enabled(%q) = %v, want %v", provider, got, want)
		}
	}
}

func TestSessionFreeEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"CLAUDE_TRANSCRIPT=/tmp/t.jsonl",
		"PATH=/usr/bin",
	}
	filtered := sessionFreeEnv(env)
	if len(filtered) != 2 {
		t.Errorf("expected 2 vars, got %d: %v", len(filtered), filtered)
	}
	for _, e := range filtered {
		if strings.HasPrefix(e, "CLAUDE_") {
			t.Errorf("CLAUDE_ var not filtered: %s", e)
		}
	}
}

func TestNotificationPromptPerTrigger(t *testing.T) {
	freeze := NotificationPrompt("Meditate", habit.TriggerStreakFreeze)
	inactive := NotificationPrompt("Meditate", habit.TriggerInactivity)
	remind := NotificationPrompt("Meditate", habit.TriggerReminder)

	if !strings.Contains(freeze, `"Meditate"`) || !strings.Contains(inactive, `"Meditate"`) {
		t.Error("prompts should name the habit")
	}
	if !strings.Contains(freeze, "streak freeze") {
		t.Error("freeze prompt should mention the freeze")
	}
	if freeze == inactive || remind == inactive || remind == freeze {
		t.Error("prompts should differ per trigger")
	}
	if !strings.Contains(remind, "daily") {
		t.Error("reminder prompt should mention the daily reminder")
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Keep going!  ", "Keep going!"},
		{`"Keep going!"`, "Keep going!"},
		{`'"Nested"'`, "Nested"},
		{"First line\nSecond line", "First line"},
		{`"`, `"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComposer(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "\"Back to Meditate today?\"\n", Provider: "mock"}}
	text, err := NewComposer(mock).Compose(context.Background(), "Meditate", habit.TriggerInactivity)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if text != "Back to Meditate today?" {
		t.Errorf("text = %q", text)
	}
	if len(mock.Calls) != 1 || !strings.Contains(mock.Calls[0], "Meditate") {
		t.Errorf("calls = %v", mock.Calls)
	}
}

func TestComposerError(t *testing.T) {
	boom := errors.New("overloaded")
	_, err := NewComposer(&MockClient{Err: boom}).Compose(context.Background(), "Run", habit.TriggerInactivity)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestLimited(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "ok"}}
	if got := NewLimited(mock, 0); got != Client(mock) {
		t.Error("non-positive rate should return the client unchanged")
	}

	limited := NewLimited(mock, 1)
	if _, err := limited.Complete(context.Background(), "a"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	// The burst is spent; a second call must wait ~60s and so hits the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Complete(ctx, "b"); err == nil {
		t.Error("expected rate limit error")
	}
	if len(mock.Calls) != 1 {
		t.Errorf("calls = %d, want 1", len(mock.Calls))
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["model"] != "llama3.2" || body["stream"] != false {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "Time for a walk.", "prompt_eval_count": 10, "eval_count": 5})
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, "llama3.2").Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Time for a walk." || resp.TokensUsed != 15 || resp.Provider != "ollama" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllama(srv.URL, "missing").Complete(context.Background(), "prompt"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"content": [{"type": "text", "text": "Your streak is safe."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic("test-key", "claude-haiku-4-5-20251001", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := a.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Your streak is safe." || resp.TokensUsed != 18 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.Calls))
	}
	if mock.Calls[0] != "test prompt" {
		t.Errorf("call[0] = %q, want %q", mock.Calls[0], "test prompt")
	}
}
