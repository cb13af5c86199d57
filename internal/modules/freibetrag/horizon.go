package freibetrag

import (
	"fmt"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// HorizonSummary condenses one candidate horizon to its tax outcome.
type HorizonSummary struct {
	Years          int     `json:"years"`
	TotalTax       float64 `json:"total_tax"`
	Savings        float64 `json:"savings"`
	SavingsPercent float64 `json:"savings_percent"`
	SavingsPerYear float64 `json:"savings_per_year"`
}

// HorizonComparison ranks candidate horizons for the same total gain.
type HorizonComparison struct {
	Horizons         []HorizonSummary `json:"horizons"`
	RecommendedYears int              `json:"recommended_years"`
}

// CompareHorizons evaluates every horizon in [minYears, maxYears] and
// recommends the one with the best savings per year of waiting, which
// penalizes stretching a schedule long after the marginal allowance
// stops buying anything.
func CompareHorizons(totalGain float64, startYear, minYears, maxYears int, taxRate, partialExemption float64) (*HorizonComparison, error) {
	if minYears <= 0 || maxYears < minYears {
		return nil, fmt.Errorf("%w: invalid horizon range [%d, %d]", domain.ErrInvalidConfig, minYears, maxYears)
	}

	cmp := &HorizonComparison{}
	bestPerYear := -1.0
	for years := minYears; years <= maxYears; years++ {
		s, err := Optimize(totalGain, startYear, years, nil, taxRate, partialExemption)
		if err != nil {
			return nil, err
		}
		perYear := s.Savings / float64(years)
		cmp.Horizons = append(cmp.Horizons, HorizonSummary{
			Years:          years,
			TotalTax:       s.TotalTaxOptimized,
			Savings:        s.Savings,
			SavingsPercent: s.SavingsPercent,
			SavingsPerYear: perYear,
		})
		if perYear > bestPerYear {
			bestPerYear = perYear
			cmp.RecommendedYears = years
		}
	}
	return cmp, nil
}
