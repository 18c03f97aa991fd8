package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaModel = "llama3.2:latest"

// ollamaProvider talks to a local Ollama deployment. No credential is
// required, only a reachable endpoint.
type ollamaProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	// older deployments reply with a bare response string
	Response string `json:"response"`
}

func newOllamaProvider(endpoint, model string, client *http.Client) (*ollamaProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: ollama endpoint not set", ErrConfiguration)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOllamaModel
	}
	return &ollamaProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   client,
	}, nil
}

func (p *ollamaProvider) Name() string  { return "ollama" }
func (p *ollamaProvider) Model() string { return p.model }

func (p *ollamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload := ollamaRequest{
		Model:  p.model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: temperature,
		},
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}

	data, err := postJSON(ctx, p.client, p.endpoint+"/api/chat", nil, payload, p.Name())
	if err != nil {
		return "", err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: ollama: decoding response: %v", ErrProtocol, err)
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		text = strings.TrimSpace(resp.Response)
	}
	if text == "" {
		return "", fmt.Errorf("%w: ollama returned empty content", ErrProtocol)
	}
	return text, nil
}
