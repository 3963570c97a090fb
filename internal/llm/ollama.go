package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaBackend implements Backend for Ollama's single-prompt /api/generate
// endpoint with streaming disabled.
type OllamaBackend struct {
	id         string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOllamaBackend creates an OllamaBackend. An empty baseURL targets a local daemon.
func NewOllamaBackend(id, model, baseURL string) *OllamaBackend {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &OllamaBackend{
		id:         id,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements Backend.
func (b *OllamaBackend) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  b.model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		},
	})
	if err != nil {
		return "", &TransportError{Provider: b.id, Err: fmt.Errorf("encode request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Provider: b.id, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Provider: b.id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &TransportError{
			Provider:   b.id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ollama: %s", strings.TrimSpace(string(msg))),
		}
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TransportError{Provider: b.id, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Response, nil
}
