package optimization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// BuildCovariance derives the covariance matrix Σ from per-asset
// volatilities and the correlation matrix: Σ_ij = σ_i σ_j ρ_ij. Assets
// keep their input order.
func BuildCovariance(assets []domain.AssetClassConfig, corr domain.CorrelationMatrix) *mat.SymDense {
	n := len(assets)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, assets[i].Volatility*assets[j].Volatility*corr.At(assets[i].Class, assets[j].Class))
		}
	}
	return sigma
}

// portfolioReturn computes μ'w.
func portfolioReturn(assets []domain.AssetClassConfig, w []float64) float64 {
	var r float64
	for i, a := range assets {
		r += a.ExpectedReturn * w[i]
	}
	return r
}

// portfolioVariance computes w'Σw.
func portfolioVariance(sigma *mat.SymDense, w []float64) float64 {
	var v float64
	n := len(w)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return v
}
