package domain

import "fmt"

// Statutory German capital-gains tax parameters.
const (
	// FlatCapitalGainsTaxRate is the Abgeltungsteuer of 25% plus the
	// 5.5% solidarity surcharge on the tax: 0.25 * 1.055.
	FlatCapitalGainsTaxRate = 0.26375

	// PartialExemptionEquityFund is the Teilfreistellung for equity
	// funds (>= 51% equity quota).
	PartialExemptionEquityFund = 0.30

	// BasisertragFactor is the statutory 70% haircut applied to the
	// Basiszins when computing the Basisertrag.
	BasisertragFactor = 0.70

	// SolidaritySurchargeRate is levied on the Kapitalertragsteuer.
	SolidaritySurchargeRate = 0.055

	// ChurchTaxRate is the Kirchensteuer on the Kapitalertragsteuer
	// (9%; Bavaria and Baden-Wuerttemberg use 8%, not modelled).
	ChurchTaxRate = 0.09
)

// SparerpauschbetragForYear returns the statutory annual tax-free
// allowance (single filer). Raised from 801 to 1000 EUR in 2023.
func SparerpauschbetragForYear(year int) float64 {
	if year >= 2023 {
		return 1000.0
	}
	return 801.0
}

// basiszinsByYear holds the statutory base rates published by the
// Bundesfinanzministerium. Years with a negative published rate are
// stored as zero: no Vorabpauschale accrues in those years.
var basiszinsByYear = map[int]float64{
	2018: 0.0087,
	2019: 0.0052,
	2020: 0.0007,
	2021: 0.0, // published -0.45%
	2022: 0.0, // published -0.05%
	2023: 0.0255,
	2024: 0.0229,
	2025: 0.0253,
}

// DefaultBasiszins is used for years outside the published table, e.g.
// future projection years.
const DefaultBasiszins = 0.0255

// BasiszinsForYear returns the statutory base rate for a calendar year,
// falling back to DefaultBasiszins for unpublished years.
func BasiszinsForYear(year int) float64 {
	if v, ok := basiszinsByYear[year]; ok {
		return v
	}
	return DefaultBasiszins
}

// BasiszinsTable returns a copy of the published base-rate table.
func BasiszinsTable() map[int]float64 {
	out := make(map[int]float64, len(basiszinsByYear))
	for y, v := range basiszinsByYear {
		out[y] = v
	}
	return out
}

// TaxConfig carries the investor's tax parameters.
type TaxConfig struct {
	// CapitalGainsTaxRate is the flat rate applied by default
	// (Abgeltungsteuer incl. solidarity surcharge).
	CapitalGainsTaxRate float64 `json:"capital_gains_tax_rate"`
	// PartialExemptionRate is the Teilfreistellung for the fund type.
	PartialExemptionRate float64 `json:"partial_exemption_rate"`
	// AllowanceByYear overrides the statutory Sparerpauschbetrag for
	// specific years. Years not present use the statutory default.
	AllowanceByYear map[int]float64 `json:"allowance_by_year,omitempty"`
	// PersonalTaxRate is the investor's marginal rate for the
	// Günstigerprüfung. Nil means the flat rate always applies.
	PersonalTaxRate *float64 `json:"personal_tax_rate,omitempty"`
	// ChurchTax adds the Kirchensteuer to the flat rate. The
	// Kapitalertragsteuer itself is reduced by the Sonderausgabenabzug
	// when church tax applies (§ 32d Abs. 1 EStG).
	ChurchTax bool `json:"church_tax,omitempty"`
}

// EffectiveFlatRate returns the flat rate actually withheld. Without
// church tax this is CapitalGainsTaxRate unchanged. With church tax the
// Kapitalertragsteuer e is computed as e = i / (1 + k/4) for church tax
// rate k, and soli plus church tax are then levied on e; for the 25%
// statutory rate this yields roughly 27.99%.
func (c TaxConfig) EffectiveFlatRate() float64 {
	if !c.ChurchTax {
		return c.CapitalGainsTaxRate
	}
	base := c.CapitalGainsTaxRate / (1 + SolidaritySurchargeRate)
	reduced := base / (1 + ChurchTaxRate/4)
	return reduced * (1 + SolidaritySurchargeRate + ChurchTaxRate)
}

// AllowanceForYear resolves the annual allowance for a calendar year.
func (c TaxConfig) AllowanceForYear(year int) float64 {
	if v, ok := c.AllowanceByYear[year]; ok {
		if v < 0 {
			return 0
		}
		return v
	}
	return SparerpauschbetragForYear(year)
}

// Validate checks the tax parameters for economic validity.
func (c TaxConfig) Validate() error {
	if c.CapitalGainsTaxRate < 0 || c.CapitalGainsTaxRate > 1 {
		return fmt.Errorf("%w: capital gains tax rate %.4f out of [0,1]", ErrInvalidConfig, c.CapitalGainsTaxRate)
	}
	if c.PartialExemptionRate < 0 || c.PartialExemptionRate > 1 {
		return fmt.Errorf("%w: partial exemption rate %.4f out of [0,1]", ErrInvalidConfig, c.PartialExemptionRate)
	}
	if c.PersonalTaxRate != nil && (*c.PersonalTaxRate < 0 || *c.PersonalTaxRate > 1) {
		return fmt.Errorf("%w: personal tax rate %.4f out of [0,1]", ErrInvalidConfig, *c.PersonalTaxRate)
	}
	return nil
}

// DefaultTaxConfig returns the statutory defaults for an equity-fund
// investor without a configured personal rate.
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		CapitalGainsTaxRate:  FlatCapitalGainsTaxRate,
		PartialExemptionRate: PartialExemptionEquityFund,
	}
}
