// Package rebalancing computes threshold- and calendar-driven
// rebalancing trades with modeled transaction costs, a cost-benefit
// gate, and tax-loss-harvesting sell ordering.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/tax"
)

// Holding is one asset class position with its aggregate cost basis,
// used to compute the tax consequence of sells.
type Holding struct {
	Value     float64 `json:"value"`
	CostBasis float64 `json:"cost_basis"`
}

// Planner computes rebalancing trade sets.
type Planner struct {
	checker *TriggerChecker
	log     zerolog.Logger
}

// NewPlanner creates a rebalancing planner.
func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{
		checker: NewTriggerChecker(log),
		log:     log.With().Str("component", "rebalancing").Logger(),
	}
}

// Checker exposes the trigger checker for callers that only need the
// trigger decision.
func (p *Planner) Checker() *TriggerChecker {
	return p.checker
}

// Plan computes the trade set restoring target allocations, subject to
// the minimum-transaction-size filter and the cost-benefit test.
// Returns nil when the rebalance should not execute. Sells are ordered
// losses-first so the tax consequence of the rebalancing act itself is
// minimized; the shared allowance tracker keeps consumption consistent
// with the rest of the year's taxation.
func (p *Planner) Plan(
	year int,
	trigger TriggerResult,
	holdings map[domain.AssetClass]Holding,
	targets map[domain.AssetClass]float64,
	costs domain.TransactionCostPolicy,
	costBenefitThreshold float64,
	taxCfg domain.TaxConfig,
	allowance *tax.AllowanceTracker,
) *domain.RebalancingEvent {
	var total float64
	for _, h := range holdings {
		total += h.Value
	}
	if total <= 0 {
		return nil
	}

	legs := make([]domain.TradeLeg, 0, len(targets))
	for class, target := range targets {
		current := holdings[class].Value
		delta := target*total - current
		if math.Abs(delta) < costs.MinimumTradeSize {
			// Legs below the minimum size are skipped: fixed costs
			// would dominate the trade.
			continue
		}
		legs = append(legs, domain.TradeLeg{Class: class, Delta: delta})
	}
	legs = balanceLegs(legs, costs.MinimumTradeSize)
	if len(legs) == 0 {
		return nil
	}

	var totalCost float64
	for _, leg := range legs {
		totalCost += LegCost(costs, leg.Delta)
	}

	if costBenefitThreshold > 0 && totalCost > costBenefitThreshold*total {
		p.log.Debug().
			Float64("cost", totalCost).
			Float64("portfolio_value", total).
			Float64("threshold", costBenefitThreshold).
			Msg("Rebalance skipped: cost-benefit test failed")
		return nil
	}

	// Tax-loss harvesting: execute sells in ascending order of
	// unrealized gain fraction so losses are realized first and gains
	// meet whatever allowance is left.
	sort.Slice(legs, func(i, j int) bool {
		if (legs[i].Delta < 0) != (legs[j].Delta < 0) {
			return legs[i].Delta < 0 // sells before buys
		}
		return gainFraction(holdings[legs[i].Class]) < gainFraction(holdings[legs[j].Class])
	})

	var totalTax float64
	for i := range legs {
		if legs[i].Delta >= 0 {
			continue
		}
		h := holdings[legs[i].Class]
		sellAmount := -legs[i].Delta
		realized := sellAmount * gainFraction(h)
		legs[i].RealizedGain = tax.RoundCents(realized)
		legs[i].TaxConsequence = tax.TaxOnRealizedGain(year, realized, taxCfg, allowance)
		totalTax += legs[i].TaxConsequence
	}

	return &domain.RebalancingEvent{
		Year:            year,
		Trigger:         trigger.Trigger,
		Reason:          trigger.Reason,
		Legs:            legs,
		TransactionCost: tax.RoundCents(totalCost),
		TaxConsequence:  tax.RoundCents(totalTax),
	}
}

// balanceLegs enforces that the executed trade set is self-financing:
// buys and sells net to zero after the minimum-size filter, so no
// proceeds leave the portfolio unaccounted. The larger side is scaled
// down to the smaller; legs that fall under the minimum size in the
// process are dropped and the remainder re-balanced. Returns nil when
// no balanced set of eligible legs exists.
func balanceLegs(legs []domain.TradeLeg, minSize float64) []domain.TradeLeg {
	for len(legs) > 0 {
		var buy, sell float64
		for _, l := range legs {
			if l.Delta > 0 {
				buy += l.Delta
			} else {
				sell -= l.Delta
			}
		}
		if buy <= 0 || sell <= 0 {
			return nil
		}
		if math.Abs(buy-sell) <= 1e-9*math.Max(buy, sell) {
			return legs
		}

		shrinkBuys := buy > sell
		ratio := sell / buy
		if !shrinkBuys {
			ratio = buy / sell
		}
		kept := legs[:0]
		for _, l := range legs {
			if (l.Delta > 0) == shrinkBuys {
				l.Delta *= ratio
			}
			if math.Abs(l.Delta) >= minSize {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(legs) {
			return kept
		}
		legs = kept
	}
	return nil
}

// gainFraction is the unrealized gain per EUR of position value.
func gainFraction(h Holding) float64 {
	if h.Value <= 0 {
		return 0
	}
	return (h.Value - h.CostBasis) / h.Value
}

// Weights converts holdings into allocation weights.
func Weights(holdings map[domain.AssetClass]Holding) map[domain.AssetClass]float64 {
	var total float64
	for _, h := range holdings {
		total += h.Value
	}
	out := make(map[domain.AssetClass]float64, len(holdings))
	if total <= 0 {
		return out
	}
	for class, h := range holdings {
		out[class] = h.Value / total
	}
	return out
}

// TargetWeights extracts the enabled targets from a portfolio config.
func TargetWeights(cfg domain.PortfolioConfig) (map[domain.AssetClass]float64, error) {
	enabled := cfg.EnabledAssets()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%w: no enabled assets", domain.ErrInvalidConfig)
	}
	out := make(map[domain.AssetClass]float64, len(enabled))
	for _, a := range enabled {
		out[a.Class] = a.TargetAllocation
	}
	return out, nil
}
