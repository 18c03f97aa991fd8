package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultAnthropicModel = "claude-haiku-4-5"

type anthropicProvider struct {
	key      string
	endpoint string
	model    string
	client   *http.Client
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func newAnthropicProvider(key, endpoint, model string, client *http.Client) (*anthropicProvider, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: anthropic api key not set", ErrConfiguration)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}
	return &anthropicProvider{
		key:      key,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   client,
	}, nil
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.model }

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   4096,
		System:      systemInstruction,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}
	headers := map[string]string{
		"x-api-key":         p.key,
		"anthropic-version": "2023-06-01",
	}

	data, err := postJSON(ctx, p.client, p.endpoint+"/v1/messages", headers, payload, p.Name())
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: anthropic: decoding response: %v", ErrProtocol, err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: anthropic returned empty content", ErrProtocol)
	}
	return text, nil
}
