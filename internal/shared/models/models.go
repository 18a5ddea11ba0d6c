package models

import "time"

// Credit amounts are int64 credit-cents (1 credit = 100 cents). All billing
// arithmetic stays in integers; see billing.Cost for the documented scale.

// Account holds a prepaid credit balance. Accounts are created externally,
// mutated only through the ledger, and soft-disabled rather than deleted.
type Account struct {
	ID              int64
	Email           string
	Credits         int64
	CreditsConsumed int64
	Disabled        bool
	CreatedAt       time.Time
}

// APIKey is a credential owned by exactly one account. A disabled or deleted
// key must never authorize a charge.
type APIKey struct {
	ID              int64
	AccountID       int64
	KeyHash         string
	KeyPrefix       string
	Name            string
	Disabled        bool
	Deleted         bool
	CreditsConsumed int64
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

// Model is provider-independent reference data. Slug has the form
// "<company>/<modelName>".
type Model struct {
	ID      int64
	Slug    string
	Name    string
	Company string
}

// ProviderOffering prices one upstream provider's capability to serve a
// model. Costs are credit-cents per token before scale normalization.
type ProviderOffering struct {
	ID              int64
	ModelID         int64
	Provider        string
	InputTokenCost  int64
	OutputTokenCost int64
}

// UsageEvent records one billed call for audit and per-key reporting.
type UsageEvent struct {
	ID           int64
	APIKeyID     int64
	OfferingID   int64
	InputTokens  int
	OutputTokens int
	Cost         int64
	CreatedAt    time.Time
}

// TopUp records one credit purchase applied to an account.
type TopUp struct {
	ID        int64
	AccountID int64
	Amount    int64
	Status    string
	CreatedAt time.Time
}
