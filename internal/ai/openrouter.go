package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenRouterModel = "openai/gpt-4o-mini"

// openRouterProvider speaks the same chat-completions dialect as OpenAI
// against the OpenRouter gateway.
type openRouterProvider struct {
	key      string
	endpoint string
	model    string
	client   *http.Client
}

func newOpenRouterProvider(key, endpoint, model string, client *http.Client) (*openRouterProvider, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: openrouter api key not set", ErrConfiguration)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenRouterModel
	}
	return &openRouterProvider{
		key:      key,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   client,
	}, nil
}

func (p *openRouterProvider) Name() string  { return "openrouter" }
func (p *openRouterProvider) Model() string { return p.model }

func (p *openRouterProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload := chatRequest{
		Model:       p.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.key}

	data, err := postJSON(ctx, p.client, p.endpoint+"/chat/completions", headers, payload, p.Name())
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: openrouter: decoding response: %v", ErrProtocol, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openrouter returned no choices", ErrProtocol)
	}
	text := strings.TrimSpace(string(resp.Choices[0].Message.Content))
	if text == "" {
		return "", fmt.Errorf("%w: openrouter returned empty content", ErrProtocol)
	}
	return text, nil
}
