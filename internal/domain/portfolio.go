package domain

import (
	"fmt"
	"math"
)

// RebalancingFrequency controls calendar-driven rebalancing checkpoints.
type RebalancingFrequency string

const (
	RebalanceNever     RebalancingFrequency = "never"
	RebalanceMonthly   RebalancingFrequency = "monthly"
	RebalanceQuarterly RebalancingFrequency = "quarterly"
	RebalanceAnnually  RebalancingFrequency = "annually"
)

// RebalancingPolicy configures when a portfolio is brought back to its
// target allocations.
type RebalancingPolicy struct {
	Frequency RebalancingFrequency `json:"frequency"`
	// UseThreshold enables drift-based triggering in addition to the
	// calendar frequency.
	UseThreshold bool `json:"use_threshold"`
	// DriftThreshold is the allocation drift, in percentage points
	// expressed as a fraction (0.05 = 5pp), beyond which a rebalance is
	// triggered.
	DriftThreshold float64 `json:"drift_threshold"`
	// CostBenefitThreshold is the maximum acceptable total transaction
	// cost as a fraction of portfolio value for a rebalance to execute.
	CostBenefitThreshold float64 `json:"cost_benefit_threshold"`
}

// TransactionCostPolicy models broker fees per trade leg.
type TransactionCostPolicy struct {
	PercentCost float64 `json:"percent_cost"` // variable cost as fraction of leg value
	FixedCost   float64 `json:"fixed_cost"`   // fixed cost per leg in EUR
	// MinimumTradeSize filters out legs too small to be worth their
	// fixed cost.
	MinimumTradeSize float64 `json:"minimum_trade_size"`
}

// VolatilityTargetPolicy scales risky exposure so that realized
// volatility tracks a target.
type VolatilityTargetPolicy struct {
	Enabled          bool    `json:"enabled"`
	TargetVolatility float64 `json:"target_volatility"`
	MinExposure      float64 `json:"min_exposure"`
	MaxExposure      float64 `json:"max_exposure"`
}

// SimulationPolicy controls the stochastic behaviour of a run.
type SimulationPolicy struct {
	// RandomReturns enables stochastic return draws. When false every
	// period uses the configured expected returns (fixed mode).
	RandomReturns bool `json:"random_returns"`
	// UseCorrelation switches the return generator to correlated
	// multi-asset draws.
	UseCorrelation bool `json:"use_correlation"`
	// Seed makes the run fully deterministic. When nil, a process-stable
	// fallback seed is used; sequences are then reproducible within the
	// process but not across processes.
	Seed *int64 `json:"seed,omitempty"`
}

// PortfolioConfig is the whole-object portfolio configuration. It is
// created once per planning session and replaced wholesale; the core
// never mutates it.
type PortfolioConfig struct {
	Assets      []AssetClassConfig     `json:"assets"`
	Correlation CorrelationMatrix      `json:"-"`
	Rebalancing RebalancingPolicy      `json:"rebalancing"`
	Costs       TransactionCostPolicy  `json:"costs"`
	VolTarget   VolatilityTargetPolicy `json:"vol_target"`
	Simulation  SimulationPolicy       `json:"simulation"`
}

// AllocationTolerance is the rounding tolerance for the sum-to-one
// invariant on enabled target allocations.
const AllocationTolerance = 1e-6

// EnabledAssets returns the enabled asset classes in canonical order.
func (c PortfolioConfig) EnabledAssets() []AssetClassConfig {
	out := make([]AssetClassConfig, 0, len(c.Assets))
	for _, a := range c.Assets {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// NormalizeAllocations scales the enabled target allocations so they sum
// to one. Returns ErrInvalidConfig when no enabled asset carries a
// positive target.
func (c *PortfolioConfig) NormalizeAllocations() error {
	var sum float64
	for _, a := range c.Assets {
		if a.Enabled {
			if a.TargetAllocation < 0 {
				return fmt.Errorf("%w: negative target allocation for %s", ErrInvalidConfig, a.Class)
			}
			sum += a.TargetAllocation
		}
	}
	if sum <= 0 {
		return fmt.Errorf("%w: enabled asset allocations sum to zero", ErrInvalidConfig)
	}
	for i := range c.Assets {
		if c.Assets[i].Enabled {
			c.Assets[i].TargetAllocation /= sum
		}
	}
	return nil
}

// Validate checks the configuration invariants. Allocations must already
// be normalized (sum of enabled targets equals one within tolerance).
func (c PortfolioConfig) Validate() error {
	enabled := c.EnabledAssets()
	if len(enabled) == 0 {
		return fmt.Errorf("%w: no enabled asset classes", ErrInvalidConfig)
	}
	var sum float64
	for _, a := range enabled {
		if a.Volatility < 0 {
			return fmt.Errorf("%w: negative volatility for %s", ErrInvalidConfig, a.Class)
		}
		sum += a.TargetAllocation
	}
	if math.Abs(sum-1.0) > AllocationTolerance {
		return fmt.Errorf("%w: enabled allocations sum to %.8f, expected 1", ErrInvalidConfig, sum)
	}
	if c.Rebalancing.UseThreshold && c.Rebalancing.DriftThreshold <= 0 {
		return fmt.Errorf("%w: drift threshold must be positive when threshold rebalancing is enabled", ErrInvalidConfig)
	}
	if c.Costs.PercentCost < 0 || c.Costs.FixedCost < 0 || c.Costs.MinimumTradeSize < 0 {
		return fmt.Errorf("%w: transaction costs must be non-negative", ErrInvalidConfig)
	}
	if c.VolTarget.Enabled {
		if c.VolTarget.TargetVolatility <= 0 {
			return fmt.Errorf("%w: volatility target must be positive", ErrInvalidConfig)
		}
		if c.VolTarget.MaxExposure < c.VolTarget.MinExposure {
			return fmt.Errorf("%w: volatility target exposure bounds are inverted", ErrInvalidConfig)
		}
	}
	return nil
}

// DefaultPortfolioConfig returns a ready-to-simulate configuration built
// from the historical reference data.
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		Assets:      DefaultAssetConfigs(),
		Correlation: DefaultCorrelationMatrix(),
		Rebalancing: RebalancingPolicy{
			Frequency:            RebalanceAnnually,
			UseThreshold:         true,
			DriftThreshold:       0.05,
			CostBenefitThreshold: 0.005,
		},
		Costs: TransactionCostPolicy{
			PercentCost:      0.002,
			FixedCost:        2.0,
			MinimumTradeSize: 50.0,
		},
		Simulation: SimulationPolicy{RandomReturns: true, UseCorrelation: true},
	}
}
