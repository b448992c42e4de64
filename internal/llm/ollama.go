package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/resilience"
)

// OllamaProvider calls a local Ollama server's chat endpoint with JSON mode
// enabled.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a provider for an Ollama server at baseURL.
func NewOllama(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

func (p *OllamaProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	reqBody := ollamaChatRequest{
		Model:  p.model,
		Stream: false,
		Format: "json",
	}
	if prompt.System != "" {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: prompt.System})
	}
	reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "user", Content: prompt.User})

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "ollama: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "ollama: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ollama: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrap(err, "ollama: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", eris.Wrap(err, "ollama: decode response")
	}
	if chatResp.Error != "" {
		return "", eris.Errorf("ollama: %s", chatResp.Error)
	}

	return chatResp.Message.Content, nil
}
