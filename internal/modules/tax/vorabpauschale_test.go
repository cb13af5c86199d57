package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenning/finanzplaner/internal/domain"
)

func taxConfig() domain.TaxConfig {
	return domain.TaxConfig{
		CapitalGainsTaxRate:  0.26375,
		PartialExemptionRate: 0.30,
	}
}

func TestComputeVorabpauschale_ReferenceScenario(t *testing.T) {
	// 100k opening capital at the 2023 Basiszins of 2.55%, held 12
	// months, equity-fund Teilfreistellung.
	cfg := taxConfig()
	// Exhaust the allowance so the pre-allowance liability is visible.
	cfg.AllowanceByYear = map[int]float64{2023: 0}

	details, err := ComputeVorabpauschale(Input{
		Year:           2023,
		OpeningCapital: 100_000,
		GainInYear:     5_000,
		Basiszins:      0.0255,
		MonthsHeld:     12,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	assert.InDelta(t, 1_785.00, details.Basisertrag, 0.01)
	assert.InDelta(t, 1_785.00, details.VorabpauschaleAmount, 0.01)
	assert.InDelta(t, 1_249.50, details.TaxableBase, 0.01)
	assert.InDelta(t, 329.55, details.SteuerVorFreibetrag, 0.01)
	assert.Equal(t, details.SteuerVorFreibetrag, details.Steuer)
	assert.Equal(t, 0.26375, details.AppliedTaxRate)
}

func TestComputeVorabpauschale_ClampedByGain(t *testing.T) {
	cfg := taxConfig()
	details, err := ComputeVorabpauschale(Input{
		Year:           2023,
		OpeningCapital: 100_000,
		GainInYear:     500, // below the Basisertrag
		Basiszins:      0.0255,
		MonthsHeld:     12,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	assert.InDelta(t, 500, details.VorabpauschaleAmount, 0.01)
	assert.LessOrEqual(t, details.VorabpauschaleAmount, details.Jahresgewinn)
}

func TestComputeVorabpauschale_LossYear(t *testing.T) {
	cfg := taxConfig()
	details, err := ComputeVorabpauschale(Input{
		Year:           2023,
		OpeningCapital: 100_000,
		GainInYear:     -3_000,
		Basiszins:      0.0255,
		MonthsHeld:     12,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	assert.Equal(t, 0.0, details.VorabpauschaleAmount)
	assert.Equal(t, 0.0, details.Steuer)
	assert.Equal(t, 0.0, details.GenutzterFreibetrag)
}

func TestComputeVorabpauschale_PartialYear(t *testing.T) {
	cfg := taxConfig()
	full, err := ComputeVorabpauschale(Input{
		Year: 2023, OpeningCapital: 100_000, GainInYear: 10_000,
		Basiszins: 0.0255, MonthsHeld: 12,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	half, err := ComputeVorabpauschale(Input{
		Year: 2023, OpeningCapital: 100_000, GainInYear: 10_000,
		Basiszins: 0.0255, MonthsHeld: 6,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	assert.InDelta(t, full.Basisertrag/2, half.Basisertrag, 0.01)
}

func TestComputeVorabpauschale_RejectsInvalidInputs(t *testing.T) {
	cfg := taxConfig()
	tracker := NewAllowanceTracker(cfg)

	_, err := ComputeVorabpauschale(Input{Year: 2023, OpeningCapital: 1000, Basiszins: -0.01, MonthsHeld: 12}, cfg, tracker)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = ComputeVorabpauschale(Input{Year: 2023, OpeningCapital: -1, Basiszins: 0.02, MonthsHeld: 12}, cfg, tracker)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestComputeVorabpauschale_MonthsClamped(t *testing.T) {
	cfg := taxConfig()
	over, err := ComputeVorabpauschale(Input{
		Year: 2023, OpeningCapital: 100_000, GainInYear: 10_000,
		Basiszins: 0.0255, MonthsHeld: 24,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	full, err := ComputeVorabpauschale(Input{
		Year: 2023, OpeningCapital: 100_000, GainInYear: 10_000,
		Basiszins: 0.0255, MonthsHeld: 12,
	}, cfg, NewAllowanceTracker(cfg))
	require.NoError(t, err)

	assert.Equal(t, full.Basisertrag, over.Basisertrag)
}

func TestGuenstigerPruefung(t *testing.T) {
	t.Run("personal rate lower", func(t *testing.T) {
		cfg := taxConfig()
		personal := 0.20
		cfg.PersonalTaxRate = &personal

		rate, explanation := selectTaxRate(cfg)
		assert.Equal(t, 0.20, rate)
		assert.Contains(t, explanation, "persönlicher Steuersatz")
		assert.Contains(t, explanation, "günstiger")
	})

	t.Run("flat rate lower", func(t *testing.T) {
		cfg := taxConfig()
		personal := 0.42
		cfg.PersonalTaxRate = &personal

		rate, explanation := selectTaxRate(cfg)
		assert.Equal(t, 0.26375, rate)
		assert.Contains(t, explanation, "Abgeltungsteuer")
	})

	t.Run("no personal rate", func(t *testing.T) {
		rate, explanation := selectTaxRate(taxConfig())
		assert.Equal(t, 0.26375, rate)
		assert.Contains(t, explanation, "kein persönlicher Steuersatz")
	})

	t.Run("church tax raises flat rate", func(t *testing.T) {
		cfg := taxConfig()
		cfg.ChurchTax = true

		rate, _ := selectTaxRate(cfg)
		// 25% / (1 + 0.09/4) * (1 + 0.055 + 0.09)
		assert.InDelta(t, 0.27995, rate, 0.0001)
	})
}

func TestAllowanceTracker(t *testing.T) {
	cfg := taxConfig() // statutory defaults: 1000 from 2023
	tracker := NewAllowanceTracker(cfg)

	assert.Equal(t, 1000.0, tracker.Remaining(2023))
	assert.Equal(t, 600.0, tracker.Consume(2023, 600))
	assert.Equal(t, 400.0, tracker.Remaining(2023))
	assert.Equal(t, 400.0, tracker.Consume(2023, 9_999))
	assert.Equal(t, 0.0, tracker.Remaining(2023))

	// Unused allowance never carries over: the next year starts fresh
	// regardless of prior consumption.
	assert.Equal(t, 1000.0, tracker.Remaining(2024))
}

func TestTaxOnRealizedGain(t *testing.T) {
	cfg := taxConfig()
	cfg.AllowanceByYear = map[int]float64{2024: 0}
	tracker := NewAllowanceTracker(cfg)

	// 10_000 gain, 30% exempt -> 7_000 taxable at 26.375%.
	got := TaxOnRealizedGain(2024, 10_000, cfg, tracker)
	assert.InDelta(t, 1_846.25, got, 0.01)

	assert.Equal(t, 0.0, TaxOnRealizedGain(2024, -500, cfg, tracker), "losses carry no liability")
}
