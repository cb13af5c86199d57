package domain

// VorabpauschaleDetails explains one year's preliminary lump-sum tax
// computation for a holding lot. The fields mirror the step-by-step
// presentation shown to the user.
type VorabpauschaleDetails struct {
	Year int `json:"year"`
	// Basiszins is the statutory base rate used for the year.
	Basiszins float64 `json:"basiszins"`
	// Basisertrag = opening capital * basiszins * 0.70 * monthsHeld/12.
	Basisertrag float64 `json:"basisertrag"`
	// Jahresgewinn is the actual gain of the year.
	Jahresgewinn float64 `json:"jahresgewinn"`
	// VorabpauschaleAmount = max(0, min(basisertrag, jahresgewinn)).
	VorabpauschaleAmount float64 `json:"vorabpauschale_amount"`
	// TaxableBase is the Vorabpauschale after Teilfreistellung.
	TaxableBase float64 `json:"taxable_base"`
	// SteuerVorFreibetrag is the tax liability before the allowance.
	SteuerVorFreibetrag float64 `json:"steuer_vor_freibetrag"`
	// GenutzterFreibetrag is the allowance consumed by this lot.
	GenutzterFreibetrag float64 `json:"genutzter_freibetrag"`
	// Steuer is the final liability after allowance consumption.
	Steuer float64 `json:"steuer"`
	// AppliedTaxRate is the rate the Günstigerprüfung selected.
	AppliedTaxRate float64 `json:"applied_tax_rate"`
	// GuenstigerPruefungResult explains, in prose, which rate was
	// applied and why.
	GuenstigerPruefungResult string `json:"guenstiger_pruefung_result"`
}

// YearRecord is the immutable per-year output of the simulation engine.
// The engine never revises an emitted record.
type YearRecord struct {
	Year           int     `json:"year"`
	OpeningCapital float64 `json:"opening_capital"`
	ClosingCapital float64 `json:"closing_capital"`

	Contribution float64 `json:"contribution"`
	Withdrawal   float64 `json:"withdrawal"`
	Interest     float64 `json:"interest"` // capital growth of the year
	TaxPaid      float64 `json:"tax_paid"`
	CostsPaid    float64 `json:"costs_paid"`

	CumulativeContributions float64 `json:"cumulative_contributions"`
	CumulativeWithdrawals   float64 `json:"cumulative_withdrawals"`
	CumulativeInterest      float64 `json:"cumulative_interest"`
	CumulativeTax           float64 `json:"cumulative_tax"`

	// Inflation-adjusted counterparts, present when an inflation rate is
	// configured.
	RealClosingCapital float64 `json:"real_closing_capital,omitempty"`
	RealWithdrawal     float64 `json:"real_withdrawal,omitempty"`

	// AssetValues holds the per-class closing values for multi-asset runs.
	AssetValues map[AssetClass]float64 `json:"asset_values,omitempty"`

	// Tax holds the year's Vorabpauschale breakdown for display.
	Tax *VorabpauschaleDetails `json:"tax,omitempty"`
}

// RebalanceTrigger names why a rebalance fired.
type RebalanceTrigger string

const (
	TriggerCalendar  RebalanceTrigger = "calendar"
	TriggerThreshold RebalanceTrigger = "threshold"
)

// TradeLeg is one buy or sell within a rebalancing event. Delta is the
// signed EUR amount (positive = buy).
type TradeLeg struct {
	Class          AssetClass `json:"class"`
	Delta          float64    `json:"delta"`
	RealizedGain   float64    `json:"realized_gain,omitempty"`
	TaxConsequence float64    `json:"tax_consequence,omitempty"`
}

// RebalancingEvent is emitted when the cost-benefit test passes and a
// rebalance executes.
type RebalancingEvent struct {
	Year            int              `json:"year"`
	Trigger         RebalanceTrigger `json:"trigger"`
	Reason          string           `json:"reason"`
	Legs            []TradeLeg       `json:"legs"`
	TransactionCost float64          `json:"transaction_cost"`
	TaxConsequence  float64          `json:"tax_consequence"`
}

// OptimizationObjective selects what the portfolio optimizer maximizes
// or minimizes.
type OptimizationObjective string

const (
	ObjectiveMaxSharpe     OptimizationObjective = "max_sharpe"
	ObjectiveMinVolatility OptimizationObjective = "min_volatility"
	ObjectiveMaxReturn     OptimizationObjective = "max_return"
)

// OptimizationResult reports an allocation search outcome. Weights sum
// to one and are non-negative.
type OptimizationResult struct {
	Objective      OptimizationObjective  `json:"objective"`
	Weights        map[AssetClass]float64 `json:"weights"`
	ExpectedReturn float64                `json:"expected_return"`
	Volatility     float64                `json:"volatility"`
	SharpeRatio    float64                `json:"sharpe_ratio"`
	Converged      bool                   `json:"converged"`
	Iterations     int                    `json:"iterations"`
}

// FreibetragScheduleEntry is one year of a multi-year gain realization
// schedule.
type FreibetragScheduleEntry struct {
	Year               int     `json:"year"`
	RealizationAmount  float64 `json:"realization_amount"`
	AvailableAllowance float64 `json:"available_allowance"`
	TaxableBase        float64 `json:"taxable_base"`
	Tax                float64 `json:"tax"`
	TaxSavings         float64 `json:"tax_savings"` // versus naive same-year share
}
