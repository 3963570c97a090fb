package llm

// AnthropicBackend implements Backend for Anthropic's Messages API.
//
// The system prompt is a top-level field there, not a message role, and the
// response is a list of content blocks; only text blocks are kept.

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicBackend implements Backend using the Anthropic SDK.
type AnthropicBackend struct {
	id     string
	client *anthropic.Client
	model  string
}

// NewAnthropicBackend creates an AnthropicBackend.
// baseURL overrides https://api.anthropic.com when non-empty.
func NewAnthropicBackend(id, apiKey, model, baseURL string) *AnthropicBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries belong to the router.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	c := anthropic.NewClient(opts...)
	return &AnthropicBackend{
		id:     id,
		client: &c,
		model:  model,
	}
}

// Generate implements Backend.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", &TransportError{Provider: b.id, StatusCode: anthropicStatus(err), Err: err}
	}
	return anthropicText(resp), nil
}

// anthropicText joins the text blocks of a response. Other block types
// (thinking, tool_use) are ignored; a refusal stop reason still returns its text.
func anthropicText(resp *anthropic.Message) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func anthropicStatus(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
