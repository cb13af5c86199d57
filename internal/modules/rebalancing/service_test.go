package rebalancing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/tax"
)

func TestMinTradeAmount(t *testing.T) {
	// €2 fixed + 0.2% at a 1% max cost ratio -> 2 / (0.01 - 0.002) = 250
	assert.InDelta(t, 250.0, MinTradeAmount(2.0, 0.002, 0.01), 1e-9)

	// Variable cost alone exceeds the ratio: prohibitive minimum.
	assert.Equal(t, 1000.0, MinTradeAmount(2.0, 0.02, 0.01))
}

func TestLegCost(t *testing.T) {
	policy := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 2.0}
	assert.InDelta(t, 2.80, LegCost(policy, 400), 1e-9)
	assert.InDelta(t, 2.80, LegCost(policy, -400), 1e-9, "cost is symmetric in trade direction")
	assert.Equal(t, 0.0, LegCost(policy, 0))
}

func TestTriggerChecker_Calendar(t *testing.T) {
	tc := NewTriggerChecker(zerolog.Nop())
	policy := domain.RebalancingPolicy{Frequency: domain.RebalanceAnnually}

	res := tc.Check(policy, 12, nil, nil)
	assert.True(t, res.ShouldRebalance)
	assert.Equal(t, domain.TriggerCalendar, res.Trigger)

	res = tc.Check(policy, 6, nil, nil)
	assert.False(t, res.ShouldRebalance)

	res = tc.Check(domain.RebalancingPolicy{Frequency: domain.RebalanceNever}, 120, nil, nil)
	assert.False(t, res.ShouldRebalance)
}

func TestTriggerChecker_Drift(t *testing.T) {
	tc := NewTriggerChecker(zerolog.Nop())
	policy := domain.RebalancingPolicy{
		Frequency:      domain.RebalanceNever,
		UseThreshold:   true,
		DriftThreshold: 0.05,
	}
	target := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.6,
		domain.AssetClassBonds:  0.4,
	}

	within := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.62,
		domain.AssetClassBonds:  0.38,
	}
	assert.False(t, tc.Check(policy, 1, within, target).ShouldRebalance)

	drifted := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.68,
		domain.AssetClassBonds:  0.32,
	}
	res := tc.Check(policy, 1, drifted, target)
	assert.True(t, res.ShouldRebalance)
	assert.Equal(t, domain.TriggerThreshold, res.Trigger)
	assert.Contains(t, res.Reason, "stocks")
}

func TestPlanner_Plan(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 70_000, CostBasis: 50_000}, // big unrealized gain
		domain.AssetClassBonds:  {Value: 30_000, CostBasis: 32_000}, // unrealized loss
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.6,
		domain.AssetClassBonds:  0.4,
	}
	costs := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 2.0, MinimumTradeSize: 50}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerThreshold, Reason: "test"},
		holdings, targets, costs, 0.01, taxCfg, tax.NewAllowanceTracker(taxCfg))
	require.NotNil(t, event)

	require.Len(t, event.Legs, 2)
	var net float64
	for _, leg := range event.Legs {
		net += leg.Delta
	}
	assert.InDelta(t, 0, net, 1e-6, "trade deltas must be self-financing")

	// 100k total: stocks 70k -> 60k (sell 10k), bonds 30k -> 40k (buy 10k).
	sell := event.Legs[0]
	assert.Equal(t, domain.AssetClassStocks, sell.Class)
	assert.InDelta(t, -10_000, sell.Delta, 1e-6)
	assert.Greater(t, sell.RealizedGain, 0.0)
	assert.Greater(t, event.TaxConsequence, 0.0)
	assert.Greater(t, event.TransactionCost, 0.0)
}

func TestPlanner_SellsLossesFirst(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	// Both risky classes are overweight and must be sold; the loss
	// position must come first in the leg ordering.
	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 40_000, CostBasis: 20_000},
		domain.AssetClassREITs:  {Value: 40_000, CostBasis: 48_000},
		domain.AssetClassBonds:  {Value: 20_000, CostBasis: 20_000},
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.30,
		domain.AssetClassREITs:  0.30,
		domain.AssetClassBonds:  0.40,
	}
	costs := domain.TransactionCostPolicy{PercentCost: 0.001, FixedCost: 1.0, MinimumTradeSize: 50}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerCalendar, Reason: "test"},
		holdings, targets, costs, 0.02, taxCfg, tax.NewAllowanceTracker(taxCfg))
	require.NotNil(t, event)
	require.GreaterOrEqual(t, len(event.Legs), 2)

	assert.Equal(t, domain.AssetClassREITs, event.Legs[0].Class, "loss position sells first")
	assert.Less(t, event.Legs[0].RealizedGain, 0.0)
	assert.Equal(t, 0.0, event.Legs[0].TaxConsequence, "realized losses carry no tax")
}

func TestPlanner_CostBenefitGate(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 700, CostBasis: 700},
		domain.AssetClassBonds:  {Value: 300, CostBasis: 300},
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.5,
		domain.AssetClassBonds:  0.5,
	}
	// Huge fixed cost relative to a 1k portfolio.
	costs := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 25.0, MinimumTradeSize: 50}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerThreshold, Reason: "test"},
		holdings, targets, costs, 0.01, taxCfg, tax.NewAllowanceTracker(taxCfg))
	assert.Nil(t, event, "cost-benefit test must block uneconomical rebalances")
}

func TestPlanner_MinimumTradeSizeFilter(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	// Drift of only 10 EUR per leg, below the 50 EUR minimum.
	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 60_010, CostBasis: 60_000},
		domain.AssetClassBonds:  {Value: 39_990, CostBasis: 39_990},
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.6,
		domain.AssetClassBonds:  0.4,
	}
	costs := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 2.0, MinimumTradeSize: 50}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerCalendar, Reason: "test"},
		holdings, targets, costs, 0.01, taxCfg, tax.NewAllowanceTracker(taxCfg))
	assert.Nil(t, event, "legs under the minimum size are skipped entirely")
}

func TestPlanner_NoOneSidedPlan(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	// The stocks sell of 60 EUR clears the minimum but both offsetting
	// buys (30 EUR each) do not: with no executable buy side the sale
	// proceeds would have nowhere to go, so no plan may be emitted.
	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 60_060, CostBasis: 50_000},
		domain.AssetClassBonds:  {Value: 29_970, CostBasis: 29_970},
		domain.AssetClassREITs:  {Value: 9_970, CostBasis: 9_970},
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.6,
		domain.AssetClassBonds:  0.3,
		domain.AssetClassREITs:  0.1,
	}
	costs := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 2.0, MinimumTradeSize: 50}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerThreshold, Reason: "test"},
		holdings, targets, costs, 0.01, taxCfg, tax.NewAllowanceTracker(taxCfg))
	assert.Nil(t, event, "a plan whose buys are all filtered must not execute its sells")
}

func TestPlanner_SellsScaledToExecutableBuys(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	taxCfg := domain.TaxConfig{CapitalGainsTaxRate: 0.26375, PartialExemptionRate: 0.30}

	// Stocks are 1000 EUR overweight; the bonds buy of 600 EUR clears
	// the 500 EUR minimum but the REITs buy of 400 EUR does not. The
	// sell must shrink to the executable buy volume.
	holdings := map[domain.AssetClass]Holding{
		domain.AssetClassStocks: {Value: 61_000, CostBasis: 50_000},
		domain.AssetClassBonds:  {Value: 29_400, CostBasis: 29_400},
		domain.AssetClassREITs:  {Value: 9_600, CostBasis: 9_600},
	}
	targets := map[domain.AssetClass]float64{
		domain.AssetClassStocks: 0.6,
		domain.AssetClassBonds:  0.3,
		domain.AssetClassREITs:  0.1,
	}
	costs := domain.TransactionCostPolicy{PercentCost: 0.002, FixedCost: 2.0, MinimumTradeSize: 500}

	event := planner.Plan(2024, TriggerResult{ShouldRebalance: true, Trigger: domain.TriggerThreshold, Reason: "test"},
		holdings, targets, costs, 0.01, taxCfg, tax.NewAllowanceTracker(taxCfg))
	require.NotNil(t, event)
	require.Len(t, event.Legs, 2)

	var net float64
	for _, leg := range event.Legs {
		net += leg.Delta
	}
	assert.InDelta(t, 0, net, 1e-9, "executed trade set must be self-financing")

	assert.Equal(t, domain.AssetClassStocks, event.Legs[0].Class)
	assert.InDelta(t, -600, event.Legs[0].Delta, 1e-9)
	assert.InDelta(t, 600, event.Legs[1].Delta, 1e-9)
}
