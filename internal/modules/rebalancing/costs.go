package rebalancing

import "github.com/rhenning/finanzplaner/internal/domain"

// LegCost returns the transaction cost for one trade leg of the given
// absolute EUR size.
func LegCost(policy domain.TransactionCostPolicy, amount float64) float64 {
	if amount < 0 {
		amount = -amount
	}
	if amount == 0 {
		return 0
	}
	return policy.FixedCost + amount*policy.PercentCost
}

// MinTradeAmount calculates the minimum trade amount at which the
// transaction cost drag stays acceptable.
//
// With a €2 + 0.2% fee structure:
//   - €50 trade: €2.10 cost = 4.2% drag, not worthwhile
//   - €200 trade: €2.40 cost = 1.2% drag, marginal
//   - €400 trade: €2.80 cost = 0.7% drag, acceptable
//
// Solves (fixed + trade*percent) / trade = maxCostRatio for trade.
func MinTradeAmount(fixedCost, percentCost, maxCostRatio float64) float64 {
	denominator := maxCostRatio - percentCost
	if denominator <= 0 {
		// Variable cost alone exceeds the acceptable ratio; return a
		// prohibitive minimum.
		return 1000.0
	}
	return fixedCost / denominator
}
