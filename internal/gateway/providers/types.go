package providers

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Canonical conversation roles accepted by the gateway.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Result is the normalized outcome of one upstream call. Token counts are
// vendor-reported, never estimated locally, so charges match the vendor's
// own billing.
type Result struct {
	Choices      []string
	InputTokens  int
	OutputTokens int
}

// ErrorKind classifies upstream failures
type ErrorKind string

const (
	// ErrUnavailable covers network and transport failures
	ErrUnavailable ErrorKind = "upstream_unavailable"
	// ErrRejected covers 4xx-class responses: bad request, vendor-side auth, rate limit
	ErrRejected ErrorKind = "upstream_rejected"
	// ErrUpstream covers 5xx-class vendor-internal failures
	ErrUpstream ErrorKind = "upstream_error"
)

// Error is a classified upstream failure. Adapters never retry; retry
// policy, if any, belongs to the caller.
type Error struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx upstream status to an error kind
func classifyStatus(status int) ErrorKind {
	if status >= 500 {
		return ErrUpstream
	}
	return ErrRejected
}

// Adapter is the single capability every upstream vendor implements:
// translate the canonical conversation, issue the call, and read back the
// vendor-reported token counts. Message ordering must be preserved exactly.
type Adapter interface {
	Dispatch(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*Result, error)
	Name() string
}
