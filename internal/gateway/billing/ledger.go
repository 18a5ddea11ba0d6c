package billing

import (
	"context"
	"fmt"
)

// Store is the transactional ledger backing the gateway. Both operations
// must be atomic with respect to concurrent callers on the same account:
// two concurrent charges must both land in the final balance (no lost
// updates), and a charge and a top-up may never interleave non-atomically.
// The gateway runs as multiple instances, so this relies on the backing
// store's primitives, not in-process locking.
type Store interface {
	// Charge decrements the account balance and increments the key's
	// consumed counter as one unit, recording the usage event. It never
	// fails on insufficient balance: cost is only known after the upstream
	// call completes, so billing is after-use and the balance may go
	// negative.
	Charge(ctx context.Context, accountID, apiKeyID, offeringID int64, inputTokens, outputTokens int, amount int64) (int64, error)
	// TopUp increments the balance and records the transaction atomically.
	TopUp(ctx context.Context, accountID, amount int64) (int64, error)
}

// Ledger validates amounts and delegates to the store.
type Ledger struct {
	store Store
}

// New creates a Ledger over the given store
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// ChargeUsage bills one completed call and attributes it to the credential.
func (l *Ledger) ChargeUsage(ctx context.Context, accountID, apiKeyID, offeringID int64, inputTokens, outputTokens int, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("charge amount must be non-negative, got %d", amount)
	}
	return l.store.Charge(ctx, accountID, apiKeyID, offeringID, inputTokens, outputTokens, amount)
}

// TopUp credits an account by a fixed positive amount.
func (l *Ledger) TopUp(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}
	return l.store.TopUp(ctx, accountID, amount)
}
