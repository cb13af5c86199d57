package simulation

import (
	"fmt"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// WithdrawalStrategy selects how the decumulation-phase withdrawal is
// determined each year.
type WithdrawalStrategy string

const (
	// WithdrawFixedAmount withdraws a constant EUR amount per year.
	WithdrawFixedAmount WithdrawalStrategy = "fixed_amount"
	// WithdrawFixedPercent withdraws a fixed fraction of the year's
	// opening capital.
	WithdrawFixedPercent WithdrawalStrategy = "fixed_percent"
	// WithdrawDynamic adjusts the withdrawal with guardrail rules based
	// on the prior year's portfolio return (Dynamische Entnahme).
	WithdrawDynamic WithdrawalStrategy = "dynamic"
)

// DynamicRules are the guardrails for the dynamic withdrawal strategy.
type DynamicRules struct {
	// UpperGuardrail: when the prior-year return exceeds it, the
	// withdrawal is raised by IncreaseRate.
	UpperGuardrail float64 `json:"upper_guardrail"`
	// LowerGuardrail: when the prior-year return falls below it, the
	// withdrawal is cut by DecreaseRate.
	LowerGuardrail float64 `json:"lower_guardrail"`
	IncreaseRate   float64 `json:"increase_rate"`
	DecreaseRate   float64 `json:"decrease_rate"`
	// Floor and Cap bound the yearly withdrawal; zero means unbounded.
	Floor float64 `json:"floor,omitempty"`
	Cap   float64 `json:"cap,omitempty"`
}

// WithdrawalPlan configures the decumulation phase.
type WithdrawalPlan struct {
	Strategy WithdrawalStrategy `json:"strategy"`
	// Amount is the yearly withdrawal for fixed_amount, and the initial
	// withdrawal for dynamic.
	Amount float64 `json:"amount,omitempty"`
	// Percent is the yearly withdrawal fraction for fixed_percent.
	Percent float64      `json:"percent,omitempty"`
	Rules   DynamicRules `json:"rules,omitempty"`
}

// Validate checks the plan's economic validity.
func (p WithdrawalPlan) Validate() error {
	switch p.Strategy {
	case "", WithdrawFixedAmount, WithdrawDynamic:
		if p.Amount < 0 {
			return fmt.Errorf("%w: negative withdrawal amount", domain.ErrInvalidConfig)
		}
	case WithdrawFixedPercent:
		if p.Percent < 0 || p.Percent > 1 {
			return fmt.Errorf("%w: withdrawal percent %.4f out of [0,1]", domain.ErrInvalidConfig, p.Percent)
		}
	default:
		return fmt.Errorf("%w: unknown withdrawal strategy %q", domain.ErrInvalidConfig, p.Strategy)
	}
	if p.Strategy == WithdrawDynamic {
		r := p.Rules
		if r.Cap > 0 && r.Floor > r.Cap {
			return fmt.Errorf("%w: withdrawal floor exceeds cap", domain.ErrInvalidConfig)
		}
		if r.IncreaseRate < 0 || r.DecreaseRate < 0 || r.DecreaseRate > 1 {
			return fmt.Errorf("%w: dynamic adjustment rates out of range", domain.ErrInvalidConfig)
		}
	}
	return nil
}

// withdrawalState tracks the evolving dynamic withdrawal across years.
type withdrawalState struct {
	plan    WithdrawalPlan
	current float64
}

func newWithdrawalState(plan WithdrawalPlan) *withdrawalState {
	return &withdrawalState{plan: plan, current: plan.Amount}
}

// amountFor returns the withdrawal for a year given its opening capital.
// The result never exceeds the opening capital.
func (s *withdrawalState) amountFor(openingCapital float64) float64 {
	var w float64
	switch s.plan.Strategy {
	case WithdrawFixedPercent:
		w = s.plan.Percent * openingCapital
	case WithdrawDynamic:
		w = s.current
	default:
		w = s.plan.Amount
	}
	if w > openingCapital {
		w = openingCapital
	}
	if w < 0 {
		w = 0
	}
	return w
}

// adjust applies the guardrail rules after a year closes.
func (s *withdrawalState) adjust(yearReturn float64) {
	if s.plan.Strategy != WithdrawDynamic {
		return
	}
	r := s.plan.Rules
	switch {
	case yearReturn > r.UpperGuardrail:
		s.current *= 1 + r.IncreaseRate
	case yearReturn < r.LowerGuardrail:
		s.current *= 1 - r.DecreaseRate
	}
	if r.Floor > 0 && s.current < r.Floor {
		s.current = r.Floor
	}
	if r.Cap > 0 && s.current > r.Cap {
		s.current = r.Cap
	}
}
