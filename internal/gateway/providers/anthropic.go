package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com"

// anthropicMaxTokens caps completion length; the Messages API requires an
// explicit value.
const anthropicMaxTokens = 2048

// AnthropicAdapter handles Anthropic Claude API requests
type AnthropicAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// AnthropicRequest represents a request to Anthropic's Messages API
type AnthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []AnthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
}

// AnthropicMessage represents a message in Anthropic format
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse represents a response from Anthropic's API
type AnthropicResponse struct {
	ID      string                  `json:"id"`
	Type    string                  `json:"type"`
	Role    string                  `json:"role"`
	Content []AnthropicContentBlock `json:"content"`
	Model   string                  `json:"model"`
	Usage   AnthropicUsage          `json:"usage"`
}

// AnthropicContentBlock represents a content block
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicUsage represents token usage
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropicAdapter creates a new Anthropic adapter
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		apiKey:  apiKey,
		baseURL: anthropicDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Dispatch makes a chat completion request to Anthropic
func (p *AnthropicAdapter) Dispatch(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*Result, error) {
	anthropicReq := p.convertRequest(model, messages)

	reqBody, _ := json.Marshal(anthropicReq)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: ErrUnavailable, Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: ErrUnavailable, Message: err.Error(), Err: err}
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(httpResp.Body)

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     classifyStatus(httpResp.StatusCode),
			Status:   httpResp.StatusCode,
			Message:  string(respBody),
		}
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     ErrUpstream,
			Status:   httpResp.StatusCode,
			Message:  fmt.Sprintf("failed to parse response: %v", err),
			Err:      err,
		}
	}

	return p.convertResponse(anthropicResp), nil
}

// convertRequest converts the canonical conversation to Anthropic format,
// lifting any system turn into the dedicated field
func (p *AnthropicAdapter) convertRequest(model string, messages []openai.ChatCompletionMessage) AnthropicRequest {
	anthropicReq := AnthropicRequest{
		Model:     model,
		Messages:  []AnthropicMessage{},
		MaxTokens: anthropicMaxTokens,
	}

	for _, msg := range messages {
		if msg.Role == "system" {
			anthropicReq.System = msg.Content
		} else {
			anthropicReq.Messages = append(anthropicReq.Messages, AnthropicMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	return anthropicReq
}

// convertResponse normalizes an Anthropic response, one choice per text block
func (p *AnthropicAdapter) convertResponse(resp AnthropicResponse) *Result {
	var choices []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			choices = append(choices, block.Text)
		}
	}

	return &Result{
		Choices:      choices,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}

// Name returns the provider identifier
func (p *AnthropicAdapter) Name() string {
	return "anthropic"
}
