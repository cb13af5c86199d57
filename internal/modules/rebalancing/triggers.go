package rebalancing

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// TriggerResult represents the outcome of a rebalancing trigger check.
type TriggerResult struct {
	ShouldRebalance bool
	Trigger         domain.RebalanceTrigger
	Reason          string
}

// TriggerChecker decides whether a policy-eligible checkpoint warrants a
// rebalance, based on the calendar frequency and the optional drift
// threshold.
type TriggerChecker struct {
	log zerolog.Logger
}

// NewTriggerChecker creates a new trigger checker.
func NewTriggerChecker(log zerolog.Logger) *TriggerChecker {
	return &TriggerChecker{
		log: log.With().Str("component", "rebalancing_triggers").Logger(),
	}
}

// intervalMonths maps a frequency to its checkpoint interval. Zero means
// calendar rebalancing is disabled.
func intervalMonths(f domain.RebalancingFrequency) int {
	switch f {
	case domain.RebalanceMonthly:
		return 1
	case domain.RebalanceQuarterly:
		return 3
	case domain.RebalanceAnnually:
		return 12
	default:
		return 0
	}
}

// Check evaluates the rebalancing triggers at a checkpoint.
// monthsSinceLast is the number of months elapsed since the last
// executed rebalance; actual and target are allocation weight maps.
func (tc *TriggerChecker) Check(
	policy domain.RebalancingPolicy,
	monthsSinceLast int,
	actual map[domain.AssetClass]float64,
	target map[domain.AssetClass]float64,
) TriggerResult {
	if interval := intervalMonths(policy.Frequency); interval > 0 && monthsSinceLast >= interval {
		return TriggerResult{
			ShouldRebalance: true,
			Trigger:         domain.TriggerCalendar,
			Reason:          fmt.Sprintf("calendar frequency %s due after %d months", policy.Frequency, monthsSinceLast),
		}
	}

	if policy.UseThreshold && policy.DriftThreshold > 0 {
		class, drift := maxDrift(actual, target)
		if drift >= policy.DriftThreshold {
			tc.log.Debug().
				Str("class", string(class)).
				Float64("drift", drift).
				Float64("threshold", policy.DriftThreshold).
				Msg("Drift threshold exceeded")
			return TriggerResult{
				ShouldRebalance: true,
				Trigger:         domain.TriggerThreshold,
				Reason:          fmt.Sprintf("%s drifted %.2fpp from target (threshold %.2fpp)", class, drift*100, policy.DriftThreshold*100),
			}
		}
	}

	return TriggerResult{ShouldRebalance: false, Reason: "no triggers met"}
}

// maxDrift returns the asset with the largest absolute allocation drift.
func maxDrift(actual, target map[domain.AssetClass]float64) (domain.AssetClass, float64) {
	var worstClass domain.AssetClass
	var worst float64
	for class, t := range target {
		d := actual[class] - t
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
			worstClass = class
		}
	}
	return worstClass, worst
}
