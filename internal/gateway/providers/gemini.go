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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiAdapter handles Google Gemini API requests
type GeminiAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GeminiRequest represents a request to Gemini's API
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent represents content in Gemini format
type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiResponse represents a response from Gemini API
type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata GeminiUsage       `json:"usageMetadata"`
}

// GeminiCandidate represents a candidate response
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

// GeminiUsage represents token usage
type GeminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// NewGeminiAdapter creates a new Gemini adapter
func NewGeminiAdapter(apiKey string) *GeminiAdapter {
	return &GeminiAdapter{
		apiKey:  apiKey,
		baseURL: geminiDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Dispatch makes a chat completion request to Gemini
func (p *GeminiAdapter) Dispatch(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*Result, error) {
	geminiReq := p.convertRequest(messages)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)

	reqBody, _ := json.Marshal(geminiReq)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: ErrUnavailable, Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: ErrUnavailable, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(body),
		}
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     ErrUpstream,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("failed to parse response: %v", err),
			Err:      err,
		}
	}

	return p.convertResponse(geminiResp), nil
}

// convertRequest converts the canonical conversation to Gemini format
func (p *GeminiAdapter) convertRequest(messages []openai.ChatCompletionMessage) GeminiRequest {
	geminiReq := GeminiRequest{
		Contents: make([]GeminiContent, 0, len(messages)),
	}

	for _, msg := range messages {
		role := msg.Role
		if role == RoleAssistant {
			role = "model"
		}
		if role == "system" {
			role = RoleUser
		}

		geminiReq.Contents = append(geminiReq.Contents, GeminiContent{
			Role:  role,
			Parts: []GeminiPart{{Text: msg.Content}},
		})
	}

	return geminiReq
}

// convertResponse normalizes a Gemini response
func (p *GeminiAdapter) convertResponse(resp GeminiResponse) *Result {
	var content string
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			content += part.Text
		}
	}

	return &Result{
		Choices:      []string{content},
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
}

// Name returns the provider identifier
func (p *GeminiAdapter) Name() string {
	return "google"
}
