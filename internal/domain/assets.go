// Package domain provides the core domain models for the planning engine.
// All types are immutable value types: configuration is passed by value
// into the core and results are freshly constructed on every call.
package domain

// AssetClass identifies an investable asset class.
type AssetClass string

const (
	AssetClassStocks      AssetClass = "stocks"
	AssetClassBonds       AssetClass = "bonds"
	AssetClassREITs       AssetClass = "reits"
	AssetClassCommodities AssetClass = "commodities"
	AssetClassCash        AssetClass = "cash"
)

// AllAssetClasses lists the supported asset classes in canonical order.
// The order is load-bearing: correlation matrices and weight vectors are
// always built in this order.
var AllAssetClasses = []AssetClass{
	AssetClassStocks,
	AssetClassBonds,
	AssetClassREITs,
	AssetClassCommodities,
	AssetClassCash,
}

// AssetClassConfig describes one asset class within a portfolio.
type AssetClassConfig struct {
	Class            AssetClass `json:"class"`
	TargetAllocation float64    `json:"target_allocation"` // fraction of portfolio, 0..1
	ExpectedReturn   float64    `json:"expected_return"`   // annual, decimal (0.07 = 7%)
	Volatility       float64    `json:"volatility"`        // annual standard deviation, decimal
	Enabled          bool       `json:"enabled"`
}

// DefaultAssetConfigs returns the historical reference parameters per
// asset class. Expected returns and volatilities are long-run estimates
// for broad EUR-denominated index exposure.
func DefaultAssetConfigs() []AssetClassConfig {
	return []AssetClassConfig{
		{Class: AssetClassStocks, TargetAllocation: 0.60, ExpectedReturn: 0.07, Volatility: 0.15, Enabled: true},
		{Class: AssetClassBonds, TargetAllocation: 0.30, ExpectedReturn: 0.03, Volatility: 0.05, Enabled: true},
		{Class: AssetClassREITs, TargetAllocation: 0.10, ExpectedReturn: 0.05, Volatility: 0.12, Enabled: true},
		{Class: AssetClassCommodities, TargetAllocation: 0.0, ExpectedReturn: 0.04, Volatility: 0.18, Enabled: false},
		{Class: AssetClassCash, TargetAllocation: 0.0, ExpectedReturn: 0.02, Volatility: 0.005, Enabled: false},
	}
}

// CorrelationMatrix is a symmetric asset-class correlation mapping with a
// unit diagonal. It is immutable once constructed.
type CorrelationMatrix struct {
	entries map[AssetClass]map[AssetClass]float64
}

// NewCorrelationMatrix builds a matrix from pairwise entries. Only one
// triangle needs to be provided; lookups are symmetric.
func NewCorrelationMatrix(pairs map[[2]AssetClass]float64) CorrelationMatrix {
	entries := make(map[AssetClass]map[AssetClass]float64)
	set := func(a, b AssetClass, v float64) {
		if entries[a] == nil {
			entries[a] = make(map[AssetClass]float64)
		}
		entries[a][b] = v
	}
	for pair, v := range pairs {
		set(pair[0], pair[1], v)
		set(pair[1], pair[0], v)
	}
	return CorrelationMatrix{entries: entries}
}

// At returns the correlation between two asset classes. The diagonal is
// always 1; unknown pairs are treated as uncorrelated.
func (m CorrelationMatrix) At(a, b AssetClass) float64 {
	if a == b {
		return 1.0
	}
	if row, ok := m.entries[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	return 0.0
}

// IsZero reports whether the matrix carries no pairwise entries, as
// after JSON decoding. Callers should fall back to the default matrix.
func (m CorrelationMatrix) IsZero() bool {
	return len(m.entries) == 0
}

// DefaultCorrelationMatrix returns the static historical reference
// correlation structure between the supported asset classes.
func DefaultCorrelationMatrix() CorrelationMatrix {
	return NewCorrelationMatrix(map[[2]AssetClass]float64{
		{AssetClassStocks, AssetClassBonds}:       -0.20,
		{AssetClassStocks, AssetClassREITs}:       0.60,
		{AssetClassStocks, AssetClassCommodities}: 0.30,
		{AssetClassStocks, AssetClassCash}:        0.00,
		{AssetClassBonds, AssetClassREITs}:        0.10,
		{AssetClassBonds, AssetClassCommodities}:  -0.10,
		{AssetClassBonds, AssetClassCash}:         0.30,
		{AssetClassREITs, AssetClassCommodities}:  0.20,
		{AssetClassREITs, AssetClassCash}:         0.00,
		{AssetClassCommodities, AssetClassCash}:   0.00,
	})
}
