package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/services"
)

type chatRequest struct {
	Model    string `json:"model"`
	System   string `json:"system"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

const testSystemPrompt = "You are a support assistant."

var testHistory = []models.Entry{
	{Role: models.RoleUser, Content: "Hi"},
	{Role: models.RoleAssistant, Content: "Hello"},
	{Role: models.RoleUser, Content: "Help me"},
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Hel", "lo ", "there"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", text)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	llm := services.NewOpenAI("key", srv.URL, "", testSystemPrompt, services.LLMParameters{}, testLogger())

	text, err := collect(llm.Chat(context.Background(), testHistory))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("Chat() = %q, want %q", text, "Hello there")
	}
	if got.Model != services.DefaultOpenAIModel || !got.Stream {
		t.Errorf("request model = %q, stream = %v", got.Model, got.Stream)
	}
	assertSystemFirst(t, got)
}

func TestOpenAIChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	llm := services.NewOpenAI("key", srv.URL, "gpt-4o", testSystemPrompt, services.LLMParameters{}, testLogger())

	if _, err := collect(llm.Chat(context.Background(), testHistory)); err == nil {
		t.Error("Chat() should fail on an unauthorized response")
	}
}

func TestOllamaChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, text := range []string{"Hel", "lo ", "there"} {
			fmt.Fprintf(w, "{\"model\":\"llama\",\"message\":{\"role\":\"assistant\",\"content\":%q},\"done\":false}\n", text)
		}
		fmt.Fprint(w, "{\"model\":\"llama\",\"message\":{\"role\":\"assistant\",\"content\":\"\"},\"done\":true}\n")
	}))
	defer srv.Close()

	llm, err := services.NewOllama(srv.URL, "llama", testSystemPrompt)
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}

	text, err := collect(llm.Chat(context.Background(), testHistory))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("Chat() = %q, want %q", text, "Hello there")
	}
	assertSystemFirst(t, got)
}

func TestAnthropicChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("x-api-key = %q, want key", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, text := range []string{"Hel", "lo ", "there"} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":%q}}\n\n", text)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	llm := services.NewAnthropic("key", srv.URL, "claude", testSystemPrompt, 1024)

	text, err := collect(llm.Chat(context.Background(), testHistory))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("Chat() = %q, want %q", text, "Hello there")
	}
	if got.System != testSystemPrompt {
		t.Errorf("system = %q, want %q", got.System, testSystemPrompt)
	}
	if len(got.Messages) != len(testHistory) {
		t.Errorf("sent %d messages, want %d", len(got.Messages), len(testHistory))
	}
}

func TestAnthropicChatErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Par\"}}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	llm := services.NewAnthropic("key", srv.URL, "claude", testSystemPrompt, 1024)

	text, err := collect(llm.Chat(context.Background(), testHistory))
	if err == nil || !strings.Contains(err.Error(), "Overloaded") {
		t.Errorf("Chat() error = %v, want overloaded error", err)
	}
	if text != "Par" {
		t.Errorf("Chat() text before error = %q, want %q", text, "Par")
	}
}

func TestOpenRouterChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		for _, text := range []string{"Hel", "lo ", "there"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", text)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	llm := services.NewOpenRouter("key", srv.URL, "openai/gpt-4o", testSystemPrompt, testLogger())

	text, err := collect(llm.Chat(context.Background(), testHistory))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("Chat() = %q, want %q", text, "Hello there")
	}
	assertSystemFirst(t, got)
}

func TestOpenRouterGenerateTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Voice guidance"}}]}`)
	}))
	defer srv.Close()

	llm := services.NewOpenRouter("key", srv.URL, "openai/gpt-4o", "Summarize as a title.", testLogger())

	title, err := llm.GenerateTitle(context.Background(), "Hi, I need help with voice guidance")
	if err != nil {
		t.Fatalf("GenerateTitle() error = %v", err)
	}
	if title != "Voice guidance" {
		t.Errorf("GenerateTitle() = %q, want %q", title, "Voice guidance")
	}
}

func collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for text, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func assertSystemFirst(t *testing.T, got chatRequest) {
	t.Helper()

	if len(got.Messages) != len(testHistory)+1 {
		t.Fatalf("sent %d messages, want %d", len(got.Messages), len(testHistory)+1)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != testSystemPrompt {
		t.Errorf("first message = %+v, want system prompt", got.Messages[0])
	}
	for i, e := range testHistory {
		m := got.Messages[i+1]
		if m.Role != string(e.Role) || m.Content != e.Content {
			t.Errorf("message %d = %+v, want %+v", i+1, m, e)
		}
	}
}
