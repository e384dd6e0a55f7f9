package openai_compat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deskmate/internal/providers"
)

func TestBuildPayloadChatCompletions(t *testing.T) {
	c := New(Config{BaseURL: "https://api.deepseek.com/v1"})

	body, endpoint, err := c.buildPayload(providers.ChatRequest{
		Model: "deepseek-chat",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "You are concise"},
			{Role: providers.RoleUser, Content: "hello"},
		},
		MaxTokens:   123,
		Temperature: 0.4,
		TopP:        0.9,
	}, false)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if endpoint != "https://api.deepseek.com/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["model"] != "deepseek-chat" {
		t.Fatalf("expected model deepseek-chat, got %#v", payload["model"])
	}
	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %#v", payload["messages"])
	}
	if _, ok := payload["stream"]; ok {
		t.Fatalf("stream flag must be absent for blocking calls")
	}
}

func TestBuildPayloadStreamFlag(t *testing.T) {
	c := New(Config{BaseURL: "https://api.openai.com/v1"})

	body, _, err := c.buildPayload(providers.ChatRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	}, true)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["stream"] != true {
		t.Fatalf("expected stream=true, got %#v", payload["stream"])
	}
}

func TestBuildEndpointURLKeepsExplicitPath(t *testing.T) {
	c := New(Config{BaseURL: "https://proxy.local/v1/chat/completions"})
	_, endpoint, err := c.buildPayload(providers.ChatRequest{
		Model:    "m",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "x"}},
	}, false)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if endpoint != "https://proxy.local/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
}

func TestChatStreamAccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo ", "world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	ch, err := c.ChatStream(context.Background(), providers.ChatRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}

	var sb strings.Builder
	sawDone := false
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		if chunk.Done {
			sawDone = true
			continue
		}
		sb.WriteString(chunk.Text)
	}
	if !sawDone {
		t.Fatalf("never saw terminal chunk")
	}
	if sb.String() != "Hello world" {
		t.Fatalf("accumulated %q", sb.String())
	}
}

func TestChatParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"pong"}}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/v1"})
	resp, err := c.Chat(context.Background(), providers.ChatRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text != "pong" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}
