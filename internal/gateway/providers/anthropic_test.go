package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newAnthropicTestAdapter(url string) *AnthropicAdapter {
	p := NewAnthropicAdapter("test-key")
	p.baseURL = url
	return p
}

func TestAnthropicDispatch(t *testing.T) {
	var gotReq AnthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(AnthropicResponse{
			ID:      "msg_1",
			Content: []AnthropicContentBlock{{Type: "text", Text: "hello"}},
			Usage:   AnthropicUsage{InputTokens: 12, OutputTokens: 7},
		})
	}))
	defer srv.Close()

	p := newAnthropicTestAdapter(srv.URL)
	result, err := p.Dispatch(context.Background(), "claude-3-5-haiku", []openai.ChatCompletionMessage{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotReq.Model != "claude-3-5-haiku" {
		t.Errorf("expected model passed through, got %s", gotReq.Model)
	}
	if gotReq.MaxTokens != anthropicMaxTokens {
		t.Errorf("expected max_tokens %d, got %d", anthropicMaxTokens, gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(gotReq.Messages))
	}
	// Order must be preserved exactly
	wantRoles := []string{"user", "assistant", "user"}
	for i, m := range gotReq.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d: expected role %s, got %s", i, wantRoles[i], m.Role)
		}
	}

	if len(result.Choices) != 1 || result.Choices[0] != "hello" {
		t.Errorf("unexpected choices %v", result.Choices)
	}
	if result.InputTokens != 12 || result.OutputTokens != 7 {
		t.Errorf("expected vendor-reported tokens 12/7, got %d/%d", result.InputTokens, result.OutputTokens)
	}
}

func TestAnthropicMultipleTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AnthropicResponse{
			Content: []AnthropicContentBlock{
				{Type: "text", Text: "first"},
				{Type: "thinking", Text: "ignored"},
				{Type: "text", Text: "second"},
			},
			Usage: AnthropicUsage{InputTokens: 1, OutputTokens: 2},
		})
	}))
	defer srv.Close()

	p := newAnthropicTestAdapter(srv.URL)
	result, err := p.Dispatch(context.Background(), "claude-3-5-haiku", []openai.ChatCompletionMessage{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Choices) != 2 || result.Choices[0] != "first" || result.Choices[1] != "second" {
		t.Errorf("unexpected choices %v", result.Choices)
	}
}

func TestAnthropicSystemExtraction(t *testing.T) {
	p := NewAnthropicAdapter("k")
	req := p.convertRequest("m", []openai.ChatCompletionMessage{
		{Role: "system", Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	if req.System != "be brief" {
		t.Errorf("expected system prompt lifted, got %q", req.System)
	}
	if len(req.Messages) != 1 {
		t.Errorf("expected system turn removed from messages, got %d", len(req.Messages))
	}
}

func TestAnthropicErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"rate limit", http.StatusTooManyRequests, ErrRejected},
		{"bad request", http.StatusBadRequest, ErrRejected},
		{"vendor auth", http.StatusUnauthorized, ErrRejected},
		{"internal", http.StatusInternalServerError, ErrUpstream},
		{"overloaded", http.StatusServiceUnavailable, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := newAnthropicTestAdapter(srv.URL)
			_, err := p.Dispatch(context.Background(), "m", []openai.ChatCompletionMessage{{Role: RoleUser, Content: "hi"}})
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *providers.Error, got %v", err)
			}
			if perr.Kind != tt.want {
				t.Errorf("status %d: expected kind %s, got %s", tt.status, tt.want, perr.Kind)
			}
			if perr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, perr.Status)
			}
		})
	}
}

func TestAnthropicUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := newAnthropicTestAdapter(srv.URL)
	_, err := p.Dispatch(context.Background(), "m", []openai.ChatCompletionMessage{{Role: RoleUser, Content: "hi"}})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *providers.Error, got %v", err)
	}
	if perr.Kind != ErrUnavailable {
		t.Errorf("expected %s, got %s", ErrUnavailable, perr.Kind)
	}
}
