package simulation

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenning/finanzplaner/internal/domain"
)

func singleAssetConfig() domain.PortfolioConfig {
	return domain.PortfolioConfig{
		Assets: []domain.AssetClassConfig{
			{Class: domain.AssetClassStocks, TargetAllocation: 1.0, ExpectedReturn: 0.05, Volatility: 0.15, Enabled: true},
		},
		Correlation: domain.DefaultCorrelationMatrix(),
		Rebalancing: domain.RebalancingPolicy{Frequency: domain.RebalanceNever},
		Simulation:  domain.SimulationPolicy{RandomReturns: false},
	}
}

func noTax() domain.TaxConfig {
	// A huge per-year allowance de facto disables taxation, which keeps
	// the compounding arithmetic exact for the growth assertions.
	allowances := make(map[int]float64)
	for y := 2020; y <= 2100; y++ {
		allowances[y] = 1e12
	}
	return domain.TaxConfig{
		CapitalGainsTaxRate:  0.26375,
		PartialExemptionRate: 0.30,
		AllowanceByYear:      allowances,
	}
}

func TestRun_FixedModeCompounding(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	result, err := engine.Run(Request{
		Config:             singleAssetConfig(),
		Tax:                noTax(),
		StartYear:          2024,
		Years:              3,
		InitialCapital:     100_000,
		AccumulationYears:  3,
		AnnualContribution: 10_000,
	})
	require.NoError(t, err)
	require.False(t, result.Failed)
	require.Len(t, result.Records, 3)

	// Year 1: (100_000 + 10_000) * 1.05
	assert.InDelta(t, 115_500, result.Records[0].ClosingCapital, 0.01)
	// Year 2: (115_500 + 10_000) * 1.05
	assert.InDelta(t, 131_775, result.Records[1].ClosingCapital, 0.01)

	assert.Equal(t, 2024, result.Records[0].Year)
	assert.Equal(t, 2026, result.Records[2].Year)
	assert.Equal(t, 30_000.0, result.TotalContributions)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_RecordsChainAcrossYears(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:             singleAssetConfig(),
		Tax:                domain.DefaultTaxConfig(),
		StartYear:          2024,
		Years:              10,
		InitialCapital:     50_000,
		AccumulationYears:  10,
		AnnualContribution: 5_000,
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 10)

	for i := 1; i < len(result.Records); i++ {
		prev, cur := result.Records[i-1], result.Records[i]
		assert.Equal(t, prev.Year+1, cur.Year, "years are strictly ordered")
		assert.InDelta(t, prev.ClosingCapital, cur.OpeningCapital, 0.01,
			"year N opens at year N-1's close")
	}
}

func TestRun_Determinism(t *testing.T) {
	seed := int64(12345)
	cfg := domain.DefaultPortfolioConfig()
	cfg.Simulation.Seed = &seed

	req := Request{
		Config:             cfg,
		Tax:                domain.DefaultTaxConfig(),
		StartYear:          2024,
		Years:              30,
		InitialCapital:     25_000,
		AccumulationYears:  20,
		AnnualContribution: 6_000,
		Withdrawal:         WithdrawalPlan{Strategy: WithdrawFixedAmount, Amount: 12_000},
	}

	engine := NewEngine(zerolog.Nop())
	a, err := engine.Run(req)
	require.NoError(t, err)
	b, err := engine.Run(req)
	require.NoError(t, err)

	require.Equal(t, len(a.Records), len(b.Records))
	for i := range a.Records {
		assert.Equal(t, a.Records[i].ClosingCapital, b.Records[i].ClosingCapital,
			"seeded runs must be bit-identical")
	}
}

func TestRun_VorabpauschaleApplied(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:            singleAssetConfig(),
		Tax:               domain.DefaultTaxConfig(),
		StartYear:         2024, // basiszins 2.29%
		Years:             1,
		InitialCapital:    1_000_000,
		AccumulationYears: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	rec := result.Records[0]
	require.NotNil(t, rec.Tax)
	// Basisertrag = 1_000_000 * 0.0229 * 0.70 = 16_030; gain is 50_000
	// so the Vorabpauschale is the full Basisertrag.
	assert.InDelta(t, 16_030, rec.Tax.Basisertrag, 0.01)
	assert.InDelta(t, 16_030, rec.Tax.VorabpauschaleAmount, 0.01)
	assert.Greater(t, rec.TaxPaid, 0.0)
	assert.Equal(t, 1_000.0, rec.Tax.GenutzterFreibetrag, "allowance consumed first")
	assert.NotEmpty(t, rec.Tax.GuenstigerPruefungResult)

	// Invariants from the tax engine hold on the emitted record.
	assert.GreaterOrEqual(t, rec.Tax.VorabpauschaleAmount, 0.0)
	assert.LessOrEqual(t, rec.Tax.VorabpauschaleAmount, math.Max(0, rec.Tax.Jahresgewinn)+0.01)
}

func TestRun_WithdrawalPhase(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:         singleAssetConfig(),
		Tax:            noTax(),
		StartYear:      2024,
		Years:          5,
		InitialCapital: 500_000,
		Withdrawal:     WithdrawalPlan{Strategy: WithdrawFixedAmount, Amount: 20_000},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 5)

	for _, rec := range result.Records {
		assert.Equal(t, 20_000.0, rec.Withdrawal)
		assert.Zero(t, rec.Contribution)
	}
	assert.Equal(t, 100_000.0, result.TotalWithdrawals)
}

func TestRun_DynamicWithdrawalGuardrails(t *testing.T) {
	cfg := singleAssetConfig()
	cfg.Assets[0].ExpectedReturn = 0.10 // always above the upper guardrail

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:         cfg,
		Tax:            noTax(),
		StartYear:      2024,
		Years:          3,
		InitialCapital: 1_000_000,
		Withdrawal: WithdrawalPlan{
			Strategy: WithdrawDynamic,
			Amount:   10_000,
			Rules: DynamicRules{
				UpperGuardrail: 0.05,
				LowerGuardrail: -0.05,
				IncreaseRate:   0.10,
				DecreaseRate:   0.10,
				Cap:            11_500,
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, 10_000.0, result.Records[0].Withdrawal)
	assert.InDelta(t, 11_000, result.Records[1].Withdrawal, 0.01, "raised 10% after a good year")
	assert.InDelta(t, 11_500, result.Records[2].Withdrawal, 0.01, "cap binds")
}

func TestRun_InflationAdjustment(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:            singleAssetConfig(),
		Tax:               noTax(),
		StartYear:         2024,
		Years:             2,
		InitialCapital:    100_000,
		AccumulationYears: 2,
		InflationRate:     0.02,
	})
	require.NoError(t, err)

	rec := result.Records[1]
	assert.InDelta(t, rec.ClosingCapital/math.Pow(1.02, 2), rec.RealClosingCapital, 0.01)
	assert.Less(t, rec.RealClosingCapital, rec.ClosingCapital)
}

func TestRun_RebalancingEmitsEvents(t *testing.T) {
	seed := int64(7)
	cfg := domain.DefaultPortfolioConfig()
	cfg.Simulation.Seed = &seed
	cfg.Rebalancing = domain.RebalancingPolicy{
		Frequency:            domain.RebalanceAnnually,
		CostBenefitThreshold: 0.05,
	}

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:            cfg,
		Tax:               domain.DefaultTaxConfig(),
		StartYear:         2024,
		Years:             20,
		InitialCapital:    500_000,
		AccumulationYears: 20,
	})
	require.NoError(t, err)
	require.False(t, result.Failed)
	require.NotEmpty(t, result.Events, "correlated drift plus annual frequency must rebalance")

	for _, ev := range result.Events {
		assert.Greater(t, ev.TransactionCost, 0.0)
		var net float64
		for _, leg := range ev.Legs {
			net += leg.Delta
		}
		assert.InDelta(t, 0, net, 1e-6, "every executed trade set must be self-financing")
	}
}

func TestRun_ComputationFailureKeepsPartialResult(t *testing.T) {
	cfg := singleAssetConfig()
	cfg.Assets[0].ExpectedReturn = math.MaxFloat64 / 4

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Run(Request{
		Config:            cfg,
		Tax:               noTax(),
		StartYear:         2024,
		Years:             5,
		InitialCapital:    100_000,
		AccumulationYears: 5,
	})
	require.NoError(t, err, "computation failures are markers, not errors")
	assert.True(t, result.Failed)
	assert.NotEmpty(t, result.FailureReason)
	assert.Less(t, len(result.Records), 5, "run aborts at the failing year")
}

func TestRun_ConfigErrors(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	t.Run("no enabled assets", func(t *testing.T) {
		cfg := singleAssetConfig()
		cfg.Assets[0].Enabled = false
		_, err := engine.Run(Request{Config: cfg, Tax: noTax(), StartYear: 2024, Years: 1, InitialCapital: 1})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("bad start year", func(t *testing.T) {
		_, err := engine.Run(Request{Config: singleAssetConfig(), Tax: noTax(), StartYear: 24, Years: 1, InitialCapital: 1})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("zero years", func(t *testing.T) {
		_, err := engine.Run(Request{Config: singleAssetConfig(), Tax: noTax(), StartYear: 2024, Years: 0, InitialCapital: 1})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}
