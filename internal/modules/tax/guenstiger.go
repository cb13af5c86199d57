package tax

import (
	"fmt"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// selectTaxRate runs the Günstigerprüfung: it compares the flat capital
// gains rate with the investor's personal marginal rate (when
// configured) and returns the lower one together with a human-readable
// justification. The explanation makes policy-selection mistakes
// distinguishable from arithmetic mistakes during review.
func selectTaxRate(cfg domain.TaxConfig) (float64, string) {
	flat := clampRate(cfg.EffectiveFlatRate())

	if cfg.PersonalTaxRate == nil {
		return flat, fmt.Sprintf(
			"Abgeltungsteuer %.3f%% angewendet: kein persönlicher Steuersatz konfiguriert",
			flat*100)
	}

	personal := clampRate(*cfg.PersonalTaxRate)
	if personal < flat {
		return personal, fmt.Sprintf(
			"Günstigerprüfung: persönlicher Steuersatz %.3f%% ist günstiger als Abgeltungsteuer %.3f%%",
			personal*100, flat*100)
	}
	return flat, fmt.Sprintf(
		"Günstigerprüfung: Abgeltungsteuer %.3f%% ist günstiger als persönlicher Steuersatz %.3f%%",
		flat*100, personal*100)
}

// clampRate confines a rate to the economically valid range [0, 1].
func clampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
