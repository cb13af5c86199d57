// Package freibetrag schedules multi-year capital-gain realizations so
// that each year's Sparerpauschbetrag is fully used before excess gains
// spill into taxable territory.
package freibetrag

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// Schedule is a complete realization plan with its baselines.
type Schedule struct {
	Entries []domain.FreibetragScheduleEntry `json:"entries"`

	TotalGain         float64 `json:"total_gain"`
	TotalTaxOptimized float64 `json:"total_tax_optimized"`
	TotalTaxNaive     float64 `json:"total_tax_naive"` // everything realized in year one
	Savings           float64 `json:"savings"`
	SavingsPercent    float64 `json:"savings_percent"`
}

// Optimize computes a realization schedule for totalGain across the
// horizon. Each year realizes gains up to the grossed-up allowance
// (allowance / (1 - partialExemption)) tax-free; the final year absorbs
// any remainder so the schedule always sums to totalGain exactly.
//
// allowances, when non-nil, must carry one entry per horizon year;
// when nil the statutory Sparerpauschbetrag per calendar year is used.
// totalGain of zero returns an empty, zero-savings schedule. A horizon
// of one year degenerates to the naive baseline by construction.
func Optimize(totalGain float64, startYear, horizonYears int, allowances []float64, taxRate, partialExemption float64) (*Schedule, error) {
	if totalGain < 0 {
		return nil, fmt.Errorf("%w: negative total gain", domain.ErrInvalidConfig)
	}
	if horizonYears <= 0 {
		return nil, fmt.Errorf("%w: horizon must be at least one year", domain.ErrInvalidConfig)
	}
	if startYear < 1000 || startYear > 9999 {
		return nil, fmt.Errorf("%w: start year %d is not a four-digit calendar year", domain.ErrInvalidConfig, startYear)
	}
	if taxRate < 0 || taxRate > 1 || partialExemption < 0 || partialExemption > 1 {
		return nil, fmt.Errorf("%w: rates must be within [0,1]", domain.ErrInvalidConfig)
	}
	if allowances != nil && len(allowances) != horizonYears {
		return nil, fmt.Errorf("%w: got %d allowance entries for a %d-year horizon", domain.ErrInvalidConfig, len(allowances), horizonYears)
	}

	if totalGain == 0 {
		return &Schedule{}, nil
	}

	rate := decimal.NewFromFloat(taxRate)
	taxableFraction := decimal.NewFromFloat(1 - partialExemption)

	allowanceFor := func(i int) decimal.Decimal {
		if allowances != nil {
			return decimal.NewFromFloat(allowances[i])
		}
		return decimal.NewFromFloat(domain.SparerpauschbetragForYear(startYear + i))
	}

	remaining := decimal.NewFromFloat(totalGain)
	schedule := &Schedule{TotalGain: totalGain}
	totalTax := decimal.Zero

	for i := 0; i < horizonYears; i++ {
		allowance := allowanceFor(i)

		var realize decimal.Decimal
		if i == horizonYears-1 {
			realize = remaining
		} else {
			realize = decimal.Min(remaining, taxFreeCapacity(allowance, taxableFraction).Round(2))
		}
		remaining = remaining.Sub(realize)

		taxable := realize.Mul(taxableFraction).Round(2)
		used := decimal.Min(allowance, taxable)
		tax := taxable.Sub(used).Mul(rate).Round(2)
		totalTax = totalTax.Add(tax)

		schedule.Entries = append(schedule.Entries, domain.FreibetragScheduleEntry{
			Year:               startYear + i,
			RealizationAmount:  toFloat(realize.Round(2)),
			AvailableAllowance: toFloat(allowance),
			TaxableBase:        toFloat(taxable),
			Tax:                toFloat(tax),
			TaxSavings:         toFloat(used.Mul(rate).Round(2)),
		})
	}

	// Naive baseline: the full gain realized in year one against that
	// single year's allowance.
	naiveTaxable := decimal.NewFromFloat(totalGain).Mul(taxableFraction)
	naiveTax := naiveTaxable.Sub(decimal.Min(allowanceFor(0), naiveTaxable)).Mul(rate).Round(2)

	schedule.TotalTaxOptimized = toFloat(totalTax)
	schedule.TotalTaxNaive = toFloat(naiveTax)
	schedule.Savings = toFloat(naiveTax.Sub(totalTax))
	if naiveTax.IsPositive() {
		schedule.SavingsPercent = toFloat(naiveTax.Sub(totalTax).Div(naiveTax).Mul(decimal.NewFromInt(100)).Round(2))
	}
	return schedule, nil
}

// taxFreeCapacity is the gain that can be realized in a year without
// exceeding its allowance, grossed up for the partial exemption. A
// fully exempt fund can absorb any gain tax-free.
func taxFreeCapacity(allowance, taxableFraction decimal.Decimal) decimal.Decimal {
	if !taxableFraction.IsPositive() {
		return decimal.NewFromFloat(1e15)
	}
	return allowance.Div(taxableFraction)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
