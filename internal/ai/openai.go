package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openAIProvider struct {
	key      string
	endpoint string
	model    string
	client   *http.Client
}

func newOpenAIProvider(key, endpoint, model string, client *http.Client) (*openAIProvider, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrConfiguration)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &openAIProvider{
		key:      key,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   client,
	}, nil
}

func (p *openAIProvider) Name() string  { return "openai" }
func (p *openAIProvider) Model() string { return p.model }

func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
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
		return "", fmt.Errorf("%w: openai: decoding response: %v", ErrProtocol, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrProtocol)
	}
	text := strings.TrimSpace(string(resp.Choices[0].Message.Content))
	if text == "" {
		return "", fmt.Errorf("%w: openai returned empty content", ErrProtocol)
	}
	return text, nil
}
