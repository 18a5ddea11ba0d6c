package billing

import "github.com/vineeth-0509/open-llm/internal/shared/models"

// CostScaleDivisor normalizes the raw token-cost sum into credit-cents.
// Offering prices are credit-cents per token scaled up by this factor, so
// cost = (in*inputCost + out*outputCost) / CostScaleDivisor, truncating
// toward zero. One documented constant; nothing else in the billing path
// rounds or scales.
const CostScaleDivisor = 10

// Cost computes the charge for one call. Pure function of the token counts
// and the offering: same inputs always produce the same cost. Integer
// arithmetic throughout; no floats anywhere in billing.
func Cost(inputTokens, outputTokens int, offering models.ProviderOffering) int64 {
	raw := int64(inputTokens)*offering.InputTokenCost + int64(outputTokens)*offering.OutputTokenCost
	return raw / CostScaleDivisor
}
