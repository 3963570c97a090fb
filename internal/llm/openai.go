package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend implements Backend for OpenAI's chat completions API and any
// endpoint that speaks the same message-array protocol.
type OpenAIBackend struct {
	id     string
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates an OpenAIBackend.
// baseURL overrides the library default (https://api.openai.com/v1) when non-empty.
func NewOpenAIBackend(id, apiKey, model, baseURL string) *OpenAIBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIBackend{
		id:     id,
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Generate sends the system prompt as a system message followed by the user prompt.
func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    openAIMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", &TransportError{Provider: b.id, StatusCode: openAIStatus(err), Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &TransportError{Provider: b.id, Err: errors.New("response contained no choices")}
	}
	// A content_filter finish reason still yields whatever text came back.
	return resp.Choices[0].Message.Content, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
}

// openAIStatus extracts the HTTP status from go-openai's error types.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
