package providers

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter handles OpenAI API requests
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
	}
}

// Dispatch makes a chat completion request to OpenAI
func (p *OpenAIAdapter) Dispatch(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return nil, p.classifyError(err)
	}

	choices := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		choices = append(choices, choice.Message.Content)
	}

	return &Result{
		Choices:      choices,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// classifyError maps go-openai SDK errors onto the upstream taxonomy
func (p *OpenAIAdapter) classifyError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Provider: p.Name(),
			Kind:     classifyStatus(apiErr.HTTPStatusCode),
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			Err:      err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{
			Provider: p.Name(),
			Kind:     classifyStatus(reqErr.HTTPStatusCode),
			Status:   reqErr.HTTPStatusCode,
			Message:  err.Error(),
			Err:      err,
		}
	}

	return &Error{
		Provider: p.Name(),
		Kind:     ErrUnavailable,
		Message:  err.Error(),
		Err:      err,
	}
}

// Name returns the provider identifier
func (p *OpenAIAdapter) Name() string {
	return "openai"
}
