package billing

import (
	"context"
	"testing"

	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

func TestCostFormula(t *testing.T) {
	offering := models.ProviderOffering{InputTokenCost: 10, OutputTokenCost: 20}

	// (10*10 + 5*20) / 10 = 20
	got := Cost(10, 5, offering)
	if got != 20 {
		t.Errorf("expected cost 20, got %d", got)
	}
}

func TestCostDeterministic(t *testing.T) {
	offering := models.ProviderOffering{InputTokenCost: 7, OutputTokenCost: 13}
	first := Cost(123, 456, offering)
	for i := 0; i < 10; i++ {
		if Cost(123, 456, offering) != first {
			t.Fatal("cost is not deterministic for identical inputs")
		}
	}
}

func TestCostTruncatesTowardZero(t *testing.T) {
	offering := models.ProviderOffering{InputTokenCost: 1, OutputTokenCost: 1}

	// raw = 19, 19/10 truncates to 1
	if got := Cost(9, 10, offering); got != 1 {
		t.Errorf("expected truncation to 1, got %d", got)
	}
	if got := Cost(0, 0, offering); got != 0 {
		t.Errorf("expected zero cost for zero tokens, got %d", got)
	}
}

type recordingStore struct {
	accountID, apiKeyID, offeringID int64
	inputTokens, outputTokens       int
	amount                          int64
	balance                         int64
	topUps                          []int64
}

func (s *recordingStore) Charge(_ context.Context, accountID, apiKeyID, offeringID int64, inputTokens, outputTokens int, amount int64) (int64, error) {
	s.accountID, s.apiKeyID, s.offeringID = accountID, apiKeyID, offeringID
	s.inputTokens, s.outputTokens = inputTokens, outputTokens
	s.amount = amount
	s.balance -= amount
	return s.balance, nil
}

func (s *recordingStore) TopUp(_ context.Context, accountID, amount int64) (int64, error) {
	s.topUps = append(s.topUps, amount)
	s.balance += amount
	return s.balance, nil
}

func TestChargeUsagePassesAmountToBothCounters(t *testing.T) {
	store := &recordingStore{balance: 100}
	l := New(store)

	newBalance, err := l.ChargeUsage(context.Background(), 1, 2, 3, 10, 5, 20)
	if err != nil {
		t.Fatal(err)
	}
	if newBalance != 80 {
		t.Errorf("expected balance 80, got %d", newBalance)
	}
	if store.accountID != 1 || store.apiKeyID != 2 || store.offeringID != 3 {
		t.Errorf("identifiers not forwarded: %d/%d/%d", store.accountID, store.apiKeyID, store.offeringID)
	}
	if store.amount != 20 || store.inputTokens != 10 || store.outputTokens != 5 {
		t.Errorf("usage not forwarded: amount=%d in=%d out=%d", store.amount, store.inputTokens, store.outputTokens)
	}
}

func TestChargeUsageRejectsNegativeAmount(t *testing.T) {
	l := New(&recordingStore{})
	if _, err := l.ChargeUsage(context.Background(), 1, 2, 3, 0, 0, -1); err == nil {
		t.Fatal("expected error for negative charge")
	}
}

func TestTopUpRejectsNonPositiveAmount(t *testing.T) {
	l := New(&recordingStore{})
	for _, amount := range []int64{0, -5} {
		if _, err := l.TopUp(context.Background(), 1, amount); err == nil {
			t.Errorf("expected error for top-up amount %d", amount)
		}
	}
}

func TestTopUpCredits(t *testing.T) {
	store := &recordingStore{balance: 50}
	l := New(store)
	newBalance, err := l.TopUp(context.Background(), 1, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if newBalance != 1050 {
		t.Errorf("expected balance 1050, got %d", newBalance)
	}
	if len(store.topUps) != 1 || store.topUps[0] != 1000 {
		t.Errorf("expected one recorded top-up of 1000, got %v", store.topUps)
	}
}
