package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/vineeth-0509/open-llm/internal/gateway/billing"
	"github.com/vineeth-0509/open-llm/internal/gateway/providers"
	"github.com/vineeth-0509/open-llm/internal/gateway/resolver"
	"github.com/vineeth-0509/open-llm/internal/shared/database"
	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

// dispatchTimeout bounds the detached upstream call once the caller's
// context no longer applies.
const dispatchTimeout = 90 * time.Second

// Identity resolves a raw credential to its key and owning account.
// Read-only; disabled and deleted credentials surface as
// database.ErrNotFound.
type Identity interface {
	LookupCredential(ctx context.Context, rawKey string) (*models.APIKey, *models.Account, error)
}

// ModelResolver selects one provider offering for a canonical model slug.
type ModelResolver interface {
	Resolve(ctx context.Context, slug string) (*resolver.Resolution, error)
}

// AdapterRegistry looks up the adapter for a provider identifier.
type AdapterRegistry interface {
	Get(provider string) (providers.Adapter, bool)
}

// Charger bills one completed call.
type Charger interface {
	ChargeUsage(ctx context.Context, accountID, apiKeyID, offeringID int64, inputTokens, outputTokens int, amount int64) (int64, error)
}

// Request is the vendor-agnostic chat completion request.
type Request struct {
	Model    string                         `json:"model"`
	Messages []openai.ChatCompletionMessage `json:"messages"`
}

// Message carries one completion's text
type Message struct {
	Content string `json:"content"`
}

// Choice wraps a message in the caller-facing response shape
type Choice struct {
	Message Message `json:"message"`
}

// Completions is the caller-facing choice list
type Completions struct {
	Choices []Choice `json:"choices"`
}

// Response is the canonical completion result returned to the caller.
type Response struct {
	Completions          Completions `json:"completions"`
	InputTokensConsumed  int         `json:"inputTokensConsumed"`
	OutputTokensConsumed int         `json:"outputTokensConsumed"`

	// Request metadata, not serialized to the caller.
	Provider      string `json:"-"`
	Cost          int64  `json:"-"`
	NewBalance    int64  `json:"-"`
	BillingFailed bool   `json:"-"`
}

// Orchestrator runs one request through authenticate → resolve → dispatch →
// bill. Every collaborator is injected; there are no package-level clients.
type Orchestrator struct {
	identity Identity
	resolver ModelResolver
	adapters AdapterRegistry
	ledger   Charger
	logger   *slog.Logger
}

// New creates an Orchestrator. logger may be nil.
func New(identity Identity, modelResolver ModelResolver, adapters AdapterRegistry, ledger Charger, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		identity: identity,
		resolver: modelResolver,
		adapters: adapters,
		ledger:   ledger,
		logger:   logger,
	}
}

// Complete serves one gateway request end to end.
func (o *Orchestrator) Complete(ctx context.Context, credential string, req Request) (*Response, error) {
	// Authenticating
	if credential == "" {
		return nil, &Error{Kind: KindUnauthenticated, Message: "missing API key"}
	}

	key, account, err := o.identity.LookupCredential(ctx, credential)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &Error{Kind: KindInvalidCredential, Message: "invalid API key"}
		}
		return nil, fmt.Errorf("credential lookup: %w", err)
	}

	// Advisory fast-fail only: the balance can change before the post-call
	// charge, and the charge itself is the authoritative operation.
	if account.Credits <= 0 {
		return nil, &Error{Kind: KindInsufficientBalance, Message: "insufficient credits"}
	}

	// Resolving
	res, err := o.resolver.Resolve(ctx, req.Model)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrUnknownModel):
			return nil, &Error{Kind: KindUnknownModel, Message: "this is an invalid model we dont support", Err: err}
		case errors.Is(err, resolver.ErrModelNotFound):
			return nil, &Error{Kind: KindModelNotFound, Message: "no provider found for this model", Err: err}
		}
		return nil, fmt.Errorf("resolve: %w", err)
	}

	adapter, ok := o.adapters.Get(res.Offering.Provider)
	if !ok {
		// Offering points at a provider this instance has no adapter for;
		// fail closed like a missing offering.
		return nil, &Error{Kind: KindModelNotFound, Message: "no provider found for this model"}
	}

	// Dispatching. If the caller already went away, abandon free of charge;
	// once the upstream call starts the cost is incurred, so it runs
	// detached from the caller's context and is always billed.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request abandoned before dispatch: %w", err)
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	result, err := adapter.Dispatch(dctx, res.UpstreamModel, req.Messages)
	if err != nil {
		return nil, upstreamError(err)
	}

	// Billing
	cost := billing.Cost(result.InputTokens, result.OutputTokens, res.Offering)

	resp := &Response{
		InputTokensConsumed:  result.InputTokens,
		OutputTokensConsumed: result.OutputTokens,
		Provider:             res.Offering.Provider,
		Cost:                 cost,
	}
	for _, choice := range result.Choices {
		resp.Completions.Choices = append(resp.Completions.Choices, Choice{Message: Message{Content: choice}})
	}

	newBalance, err := o.ledger.ChargeUsage(dctx, account.ID, key.ID, res.Offering.ID, result.InputTokens, result.OutputTokens, cost)
	if err != nil {
		// The reply exists and the upstream cost is paid; losing it over a
		// ledger write is worse than a reconciliation gap. Log and return
		// the completion.
		o.logger.Error("billing failed after successful dispatch, reconciliation required",
			"kind", KindBillingFailed,
			"account_id", account.ID,
			"api_key_id", key.ID,
			"offering_id", res.Offering.ID,
			"input_tokens", result.InputTokens,
			"output_tokens", result.OutputTokens,
			"cost", cost,
			"error", err,
		)
		resp.BillingFailed = true
		return resp, nil
	}
	resp.NewBalance = newBalance

	return resp, nil
}

// upstreamError maps adapter failures onto the caller-visible taxonomy
func upstreamError(err error) *Error {
	var perr *providers.Error
	if errors.As(err, &perr) {
		kind := KindUpstreamError
		switch perr.Kind {
		case providers.ErrUnavailable:
			kind = KindUpstreamUnavailable
		case providers.ErrRejected:
			kind = KindUpstreamRejected
		}
		return &Error{Kind: kind, Message: "provider error", Err: err}
	}
	return &Error{Kind: KindUpstreamError, Message: "provider error", Err: err}
}
