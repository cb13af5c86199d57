// Package tax implements the German Vorabpauschale engine: the annual
// preliminary lump-sum taxation of fund holdings, including
// Teilfreistellung, the Günstigerprüfung and Sparerpauschbetrag
// consumption.
package tax

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// Input describes one holding lot's tax-relevant state for a year.
type Input struct {
	Year           int     `json:"year"`
	OpeningCapital float64 `json:"opening_capital"`
	// GainInYear is the actual (realized or unrealized) gain of the
	// year; may be negative.
	GainInYear float64 `json:"gain_in_year"`
	// Basiszins is the statutory base rate for the year. Use
	// domain.BasiszinsForYear when no override applies.
	Basiszins float64 `json:"basiszins"`
	// MonthsHeld is the number of months the lot was held during the
	// year; clamped to [0, 12].
	MonthsHeld int `json:"months_held"`
}

// ComputeVorabpauschale runs the full per-lot, per-year pipeline:
// Basisertrag → clamp against actual gain → Teilfreistellung →
// Günstigerprüfung → allowance consumption → liability. The allowance
// tracker is shared across lots of the same investor so consumption
// order is preserved.
func ComputeVorabpauschale(in Input, cfg domain.TaxConfig, allowance *AllowanceTracker) (domain.VorabpauschaleDetails, error) {
	if in.Basiszins < 0 {
		return domain.VorabpauschaleDetails{}, fmt.Errorf("%w: negative basiszins %.4f", domain.ErrInvalidConfig, in.Basiszins)
	}
	if in.OpeningCapital < 0 {
		return domain.VorabpauschaleDetails{}, fmt.Errorf("%w: negative opening capital %.2f", domain.ErrInvalidConfig, in.OpeningCapital)
	}

	months := in.MonthsHeld
	if months < 0 {
		months = 0
	}
	if months > 12 {
		months = 12
	}

	basisertrag := in.OpeningCapital * in.Basiszins * domain.BasisertragFactor * float64(months) / 12.0

	// The Vorabpauschale is floored at zero and capped by the actual
	// gain: loss years carry no lump sum.
	vorab := math.Min(basisertrag, in.GainInYear)
	if vorab < 0 {
		vorab = 0
	}

	exemption := clampRate(cfg.PartialExemptionRate)
	taxable := RoundCents(vorab * (1 - exemption))

	rate, explanation := selectTaxRate(cfg)
	steuerVorFreibetrag := RoundCents(taxable * rate)

	used := allowance.Consume(in.Year, taxable)
	steuer := RoundCents((taxable - used) * rate)

	return domain.VorabpauschaleDetails{
		Year:                     in.Year,
		Basiszins:                in.Basiszins,
		Basisertrag:              RoundCents(basisertrag),
		Jahresgewinn:             in.GainInYear,
		VorabpauschaleAmount:     RoundCents(vorab),
		TaxableBase:              taxable,
		SteuerVorFreibetrag:      steuerVorFreibetrag,
		GenutzterFreibetrag:      RoundCents(used),
		Steuer:                   steuer,
		AppliedTaxRate:           rate,
		GuenstigerPruefungResult: explanation,
	}, nil
}

// TaxOnRealizedGain computes the liability on a realized capital gain
// (a sale), applying Teilfreistellung, the Günstigerprüfung and any
// remaining allowance for the year. Losses produce no liability and
// consume no allowance.
func TaxOnRealizedGain(year int, gain float64, cfg domain.TaxConfig, allowance *AllowanceTracker) float64 {
	if gain <= 0 {
		return 0
	}
	taxable := gain * (1 - clampRate(cfg.PartialExemptionRate))
	rate, _ := selectTaxRate(cfg)
	used := allowance.Consume(year, taxable)
	return RoundCents((taxable - used) * rate)
}

// RoundCents rounds a EUR amount to whole cents using exact decimal
// arithmetic, avoiding the drift of repeated binary rounding.
func RoundCents(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}
