// Package returns generates per-period asset return sequences for the
// simulation engine: fixed rates, seeded single-asset normal draws, and
// correlated multi-asset draws via a Cholesky transform.
package returns

import (
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/rhenning/finanzplaner/internal/domain"
)

var (
	fallbackSeedOnce sync.Once
	fallbackSeed     int64
)

// processSeed returns the fallback seed used when no explicit seed is
// configured. It is chosen once per process, so repeated unseeded runs
// within the same process produce identical sequences. It is not stable
// across processes; callers requiring full determinism must pass an
// explicit seed.
func processSeed() int64 {
	fallbackSeedOnce.Do(func() {
		fallbackSeed = int64(rand.Uint64())
	})
	return fallbackSeed
}

// Generator produces deterministic return sequences from a seed. A
// Generator is not restartable: re-create it with the same seed to
// replay a sequence.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator from the simulation policy's seed, falling
// back to the process seed when none is set.
func New(policy domain.SimulationPolicy) *Generator {
	seed := processSeed()
	if policy.Seed != nil {
		seed = *policy.Seed
	}
	return NewSeeded(seed)
}

// NewSeeded creates a generator with an explicit seed.
func NewSeeded(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Fixed returns a constant sequence of the given rate.
func (g *Generator) Fixed(rate float64, periods int) []float64 {
	out := make([]float64, periods)
	for i := range out {
		out[i] = rate
	}
	return out
}

// Normal draws an independent Normal(mean, sd) return per period.
func (g *Generator) Normal(mean, sd float64, periods int) []float64 {
	out := make([]float64, periods)
	for i := range out {
		out[i] = mean + sd*g.rng.NormFloat64()
	}
	return out
}

// Correlated draws one return vector per period across the given assets,
// with cross-correlations converging to the configured matrix as the
// sample grows. The result is indexed [period][asset], assets in input
// order. Fails when the correlation matrix is not positive
// semi-definite.
func (g *Generator) Correlated(assets []domain.AssetClassConfig, corr domain.CorrelationMatrix, periods int) ([][]float64, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets for correlated draws", domain.ErrInvalidConfig)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, corr.At(assets[i].Class, assets[j].Class))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("%w: correlation matrix is not positive semi-definite", domain.ErrInvalidConfig)
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	out := make([][]float64, periods)
	z := make([]float64, n)
	for p := 0; p < periods; p++ {
		for i := range z {
			z[i] = g.rng.NormFloat64()
		}
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			// y_i = sum_j L[i][j] * z_j
			var y float64
			for j := 0; j <= i; j++ {
				y += lower.At(i, j) * z[j]
			}
			row[i] = assets[i].ExpectedReturn + assets[i].Volatility*y
		}
		out[p] = row
	}
	return out, nil
}
