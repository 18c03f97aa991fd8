package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProviderCredentialPreconditions(t *testing.T) {
	client := &http.Client{}
	if _, err := newOpenAIProvider("   ", "http://x", "", client); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for blank openai key, got %v", err)
	}
	if _, err := newAnthropicProvider("", "http://x", "", client); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for blank anthropic key, got %v", err)
	}
	if _, err := newOpenRouterProvider("", "http://x", "", client); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for blank openrouter key, got %v", err)
	}
	if _, err := newOllamaProvider("  ", "", client); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for blank ollama endpoint, got %v", err)
	}
}

func TestDefaultModels(t *testing.T) {
	client := &http.Client{}
	p, err := newOpenAIProvider("k", "http://x", "", client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != defaultOpenAIModel {
		t.Fatalf("expected default model, got %q", p.Model())
	}

	p2, err := newOpenAIProvider("k", "http://x", "gpt-4.1", client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.Model() != "gpt-4.1" {
		t.Fatalf("expected override honored, got %q", p2.Model())
	}
}

func TestOpenAIStringContent(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"<summary>S</summary><agenda>A</agenda>"}}]}`))
	}))
	defer srv.Close()

	p, _ := newOpenAIProvider("test-key", srv.URL, "", srv.Client())
	text, err := p.Complete(context.Background(), Request{Notes: "n"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(text, "<summary>S</summary>") {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", gotBody.Temperature)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestOpenAIContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}}]}`))
	}))
	defer srv.Close()

	p, _ := newOpenAIProvider("k", srv.URL, "", srv.Client())
	text, err := p.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected joined parts, got %q", text)
	}
}

func TestOpenAITransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := newOpenAIProvider("k", srv.URL, "", srv.Client())
	_, err := p.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected status and body in message, got %q", err.Error())
	}
}

func TestOpenAIEmptyReplyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer srv.Close()

	p, _ := newOpenAIProvider("k", srv.URL, "", srv.Client())
	if _, err := p.Complete(context.Background(), Request{}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestAnthropicHeadersAndContentBlocks(t *testing.T) {
	var gotKey, gotVersion, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"<summary>S</summary>"},{"type":"tool_use","text":"ignored"}]}`))
	}))
	defer srv.Close()

	p, _ := newAnthropicProvider("sk-ant", srv.URL, "", srv.Client())
	text, err := p.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "<summary>S</summary>" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotKey != "sk-ant" || gotVersion != "2023-06-01" {
		t.Fatalf("unexpected headers: key=%q version=%q", gotKey, gotVersion)
	}
	if gotPath != "/v1/messages" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestOllamaChatAndLegacyShapes(t *testing.T) {
	var gotBody ollamaRequest
	modern := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"modern reply"}}`))
	}))
	defer modern.Close()

	p, _ := newOllamaProvider(modern.URL, "", modern.Client())
	text, err := p.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "modern reply" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotBody.Stream {
		t.Fatal("expected stream:false")
	}
	if gotBody.Options.Temperature != 0.2 {
		t.Fatalf("expected temperature in options, got %v", gotBody.Options.Temperature)
	}

	legacy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"legacy reply"}`))
	}))
	defer legacy.Close()

	p2, _ := newOllamaProvider(legacy.URL, "", legacy.Client())
	text, err = p2.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "legacy reply" {
		t.Fatalf("unexpected text: %q", text)
	}
}
