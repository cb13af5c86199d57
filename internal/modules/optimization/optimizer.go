// Package optimization searches for portfolio allocation weights that
// optimize a chosen objective over the simplex (weights non-negative,
// summing to one).
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/rhenning/finanzplaner/internal/domain"
)

const (
	// maxIterations bounds the search; there is no wall-clock timeout.
	maxIterations = 2000
	// penaltyWeight enforces the sum-to-one constraint.
	penaltyWeight = 1000.0
	// volFloor guards Sharpe ratios against division by zero.
	volFloor = 1e-9
)

// Optimizer performs constrained allocation searches.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimization").Logger()}
}

// Optimize searches allocation weights for the enabled assets of the
// config. Fewer than two enabled asset classes is a degenerate request
// and returns ErrNotApplicable. The result reports whether the search
// converged or hit the iteration cap, and the iteration count, so
// callers can tell a trustworthy optimum from a best-effort one.
func (o *Optimizer) Optimize(
	cfg domain.PortfolioConfig,
	objective domain.OptimizationObjective,
	riskFreeRate float64,
) (domain.OptimizationResult, error) {
	assets := cfg.EnabledAssets()
	if len(assets) < 2 {
		return domain.OptimizationResult{}, fmt.Errorf(
			"%w: optimization needs at least 2 enabled asset classes, got %d", domain.ErrNotApplicable, len(assets))
	}
	if cfg.Correlation.IsZero() {
		cfg.Correlation = domain.DefaultCorrelationMatrix()
	}

	sigma := BuildCovariance(assets, cfg.Correlation)

	var scoreFn func(w []float64) float64
	switch objective {
	case domain.ObjectiveMaxSharpe:
		scoreFn = func(w []float64) float64 {
			vol := math.Sqrt(math.Max(portfolioVariance(sigma, w), 0))
			return -(portfolioReturn(assets, w) - riskFreeRate) / math.Max(vol, volFloor)
		}
	case domain.ObjectiveMinVolatility:
		scoreFn = func(w []float64) float64 {
			return portfolioVariance(sigma, w)
		}
	case domain.ObjectiveMaxReturn:
		scoreFn = func(w []float64) float64 {
			return -portfolioReturn(assets, w)
		}
	default:
		return domain.OptimizationResult{}, fmt.Errorf("%w: unknown objective %q", domain.ErrInvalidConfig, objective)
	}

	n := len(assets)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToSimplexBounds(x)
			obj := scoreFn(w)

			// Penalty for the sum constraint: (Σw - 1)².
			var sum float64
			for _, v := range w {
				sum += v
			}
			return obj + penaltyWeight*(sum-1)*(sum-1)
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}
	settings := &optimize.Settings{MajorIterations: maxIterations}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil && result == nil {
		return domain.OptimizationResult{}, fmt.Errorf("optimization failed: %w", err)
	}

	converged := isConverged(result.Status)
	if !converged {
		// Retry with a gradient-based method before giving up on
		// convergence; gonum falls back to finite differences.
		if retry, retryErr := optimize.Minimize(problem, initial, settings, &optimize.BFGS{}); retryErr == nil && retry != nil {
			if isConverged(retry.Status) || retry.F < result.F {
				result = retry
				converged = isConverged(retry.Status)
			}
		}
	}

	weights := normalize(projectToSimplexBounds(result.X))
	ret := portfolioReturn(assets, weights)
	vol := math.Sqrt(math.Max(portfolioVariance(sigma, weights), 0))

	out := domain.OptimizationResult{
		Objective:      objective,
		Weights:        make(map[domain.AssetClass]float64, n),
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    (ret - riskFreeRate) / math.Max(vol, volFloor),
		Converged:      converged,
		Iterations:     result.Stats.MajorIterations,
	}
	for i, a := range assets {
		out.Weights[a.Class] = weights[i]
	}

	o.log.Debug().
		Str("objective", string(objective)).
		Bool("converged", out.Converged).
		Int("iterations", out.Iterations).
		Float64("expected_return", ret).
		Float64("volatility", vol).
		Msg("Optimization finished")

	return out, nil
}

// EvaluateWeights computes the metrics of a given allocation without
// searching, e.g. to score the user's current targets.
func (o *Optimizer) EvaluateWeights(cfg domain.PortfolioConfig, riskFreeRate float64) (domain.OptimizationResult, error) {
	assets := cfg.EnabledAssets()
	if len(assets) == 0 {
		return domain.OptimizationResult{}, fmt.Errorf("%w: no enabled assets", domain.ErrInvalidConfig)
	}
	if cfg.Correlation.IsZero() {
		cfg.Correlation = domain.DefaultCorrelationMatrix()
	}
	w := make([]float64, len(assets))
	for i, a := range assets {
		w[i] = a.TargetAllocation
	}
	sigma := BuildCovariance(assets, cfg.Correlation)
	ret := portfolioReturn(assets, w)
	vol := math.Sqrt(math.Max(portfolioVariance(sigma, w), 0))

	out := domain.OptimizationResult{
		Weights:        make(map[domain.AssetClass]float64, len(assets)),
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    (ret - riskFreeRate) / math.Max(vol, volFloor),
		Converged:      true,
	}
	for i, a := range assets {
		out.Weights[a.Class] = w[i]
	}
	return out, nil
}

func isConverged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold:
		return true
	default:
		return false
	}
}

// projectToSimplexBounds clamps each coordinate into [0, 1]. The
// sum-to-one constraint is handled by the penalty term and a final
// normalization.
func projectToSimplexBounds(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, 0), 1)
	}
	return out
}

func normalize(w []float64) []float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		// Degenerate interior point; fall back to equal weights.
		for i := range w {
			w[i] = 1.0 / float64(len(w))
		}
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
