// Package simulation drives the year-by-year portfolio simulation: it
// pulls returns from the generator, applies phase cash flows, invokes
// the Vorabpauschale engine, triggers rebalancing, and emits immutable
// per-year records.
package simulation

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/rebalancing"
	"github.com/rhenning/finanzplaner/internal/modules/returns"
	"github.com/rhenning/finanzplaner/internal/modules/tax"
)

// Request is the full input of a simulation run. It is passed by value;
// the engine retains no references across calls.
type Request struct {
	Config domain.PortfolioConfig `json:"config"`
	Tax    domain.TaxConfig       `json:"tax"`

	// StartYear is the first simulated calendar year. It is injected by
	// the caller; the engine never reads the system clock.
	StartYear int `json:"start_year"`
	Years     int `json:"years"`

	InitialCapital float64 `json:"initial_capital"`

	// AccumulationYears is the length of the contribution phase; the
	// decumulation phase with the withdrawal plan follows.
	AccumulationYears  int     `json:"accumulation_years"`
	AnnualContribution float64 `json:"annual_contribution"`
	// ContributionOverrides replaces the annual contribution for
	// specific calendar years.
	ContributionOverrides map[int]float64 `json:"contribution_overrides,omitempty"`

	Withdrawal WithdrawalPlan `json:"withdrawal"`

	// InflationRate deflates nominal values into the record's real
	// counterparts. Zero disables the adjustment.
	InflationRate float64 `json:"inflation_rate"`
}

// Result of a simulation run. When Failed is set, Records holds every
// year completed before the failure; the sequence is never silently
// truncated.
type Result struct {
	RunID string `json:"run_id"`

	Records []domain.YearRecord       `json:"records"`
	Events  []domain.RebalancingEvent `json:"events"`

	FinalCapital       float64 `json:"final_capital"`
	TotalContributions float64 `json:"total_contributions"`
	TotalWithdrawals   float64 `json:"total_withdrawals"`
	TotalInterest      float64 `json:"total_interest"`
	TotalTax           float64 `json:"total_tax"`
	TotalCosts         float64 `json:"total_costs"`

	Failed        bool   `json:"failed"`
	FailureYear   int    `json:"failure_year,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Engine orchestrates simulation runs. It is stateless between calls
// and safe for concurrent use.
type Engine struct {
	planner *rebalancing.Planner
	log     zerolog.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		planner: rebalancing.NewPlanner(log),
		log:     log.With().Str("component", "simulation").Logger(),
	}
}

// lot tracks one asset class position through the run.
type lot struct {
	class AssetRef
	value float64
	basis float64
}

// AssetRef pairs an asset class with its config index.
type AssetRef struct {
	Class domain.AssetClass
	Cfg   domain.AssetClassConfig
}

// Run executes the simulation. Configuration errors are returned before
// any year is simulated; mid-run computation failures return the
// partial result with the failure marker set and a nil error.
func (e *Engine) Run(req Request) (*Result, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}

	enabled := req.Config.EnabledAssets()
	gen := returns.New(req.Config.Simulation)
	perYear, err := e.generateReturns(gen, req, enabled)
	if err != nil {
		return nil, err
	}

	lots := make([]lot, len(enabled))
	for i, a := range enabled {
		v := req.InitialCapital * a.TargetAllocation
		lots[i] = lot{class: AssetRef{Class: a.Class, Cfg: a}, value: v, basis: v}
	}

	allowance := tax.NewAllowanceTracker(req.Tax)
	ws := newWithdrawalState(req.Withdrawal)
	targets, _ := rebalancing.TargetWeights(req.Config)

	result := &Result{RunID: uuid.New().String()}
	monthsSinceRebalance := 0

	for i := 0; i < req.Years; i++ {
		year := req.StartYear + i
		opening := totalValue(lots)

		var contribution, withdrawal, withdrawalTax float64
		if i < req.AccumulationYears {
			contribution = req.AnnualContribution
			if override, ok := req.ContributionOverrides[year]; ok {
				contribution = override
			}
			applyContribution(lots, contribution)
		} else {
			withdrawal = ws.amountFor(opening)
			withdrawalTax = applyWithdrawal(lots, withdrawal, year, req.Tax, allowance)
		}

		afterFlows := totalValue(lots)
		exposure := e.exposureFor(req.Config, lots)

		// Capital growth per lot; cash never participates in
		// volatility-target scaling.
		openings := make([]float64, len(lots))
		gains := make([]float64, len(lots))
		var yearGain float64
		for j := range lots {
			openings[j] = lots[j].value
			r := perYear[i][j]
			if lots[j].class.Class != domain.AssetClassCash {
				r *= exposure
			}
			gains[j] = lots[j].value * r
			lots[j].value += gains[j]
			yearGain += gains[j]
		}

		taxDetails, vorabTax, err := e.applyVorabpauschale(year, req.Tax, lots, openings, gains, allowance)
		if err != nil {
			e.fail(result, year, err)
			return result, nil
		}
		deductProRata(lots, vorabTax)

		monthsSinceRebalance += 12
		event := e.maybeRebalance(year, req, lots, targets, monthsSinceRebalance, allowance)
		var rebalanceCost, rebalanceTax float64
		if event != nil {
			rebalanceCost = event.TransactionCost
			rebalanceTax = event.TaxConsequence
			result.Events = append(result.Events, *event)
			monthsSinceRebalance = 0
		}

		closing := totalValue(lots)
		if math.IsNaN(closing) || math.IsInf(closing, 0) {
			e.fail(result, year, fmt.Errorf("%w: capital is not a finite number", domain.ErrComputation))
			return result, nil
		}

		taxPaid := vorabTax + withdrawalTax + rebalanceTax
		result.TotalContributions += contribution
		result.TotalWithdrawals += withdrawal
		result.TotalInterest += yearGain
		result.TotalTax += taxPaid
		result.TotalCosts += rebalanceCost

		record := domain.YearRecord{
			Year:                    year,
			OpeningCapital:          tax.RoundCents(opening),
			ClosingCapital:          tax.RoundCents(closing),
			Contribution:            contribution,
			Withdrawal:              withdrawal,
			Interest:                tax.RoundCents(yearGain),
			TaxPaid:                 tax.RoundCents(taxPaid),
			CostsPaid:               rebalanceCost,
			CumulativeContributions: result.TotalContributions,
			CumulativeWithdrawals:   result.TotalWithdrawals,
			CumulativeInterest:      tax.RoundCents(result.TotalInterest),
			CumulativeTax:           tax.RoundCents(result.TotalTax),
			Tax:                     taxDetails,
		}
		if req.InflationRate > 0 {
			deflator := math.Pow(1+req.InflationRate, float64(i+1))
			record.RealClosingCapital = tax.RoundCents(closing / deflator)
			record.RealWithdrawal = tax.RoundCents(withdrawal / deflator)
		}
		if req.Config.Simulation.UseCorrelation && len(lots) > 1 {
			record.AssetValues = make(map[domain.AssetClass]float64, len(lots))
			for _, l := range lots {
				record.AssetValues[l.class.Class] = tax.RoundCents(l.value)
			}
		}
		result.Records = append(result.Records, record)

		if afterFlows > 0 {
			ws.adjust(yearGain / afterFlows)
		}
	}

	result.FinalCapital = tax.RoundCents(totalValue(lots))
	return result, nil
}

func (e *Engine) validate(req *Request) error {
	if req.Config.Correlation.IsZero() {
		req.Config.Correlation = domain.DefaultCorrelationMatrix()
	}
	if err := req.Config.NormalizeAllocations(); err != nil {
		return err
	}
	if err := req.Config.Validate(); err != nil {
		return err
	}
	if err := req.Tax.Validate(); err != nil {
		return err
	}
	if err := req.Withdrawal.Validate(); err != nil {
		return err
	}
	if req.StartYear < 1000 || req.StartYear > 9999 {
		return fmt.Errorf("%w: start year %d is not a four-digit calendar year", domain.ErrInvalidConfig, req.StartYear)
	}
	if req.Years <= 0 {
		return fmt.Errorf("%w: years must be positive", domain.ErrInvalidConfig)
	}
	if req.InitialCapital < 0 {
		return fmt.Errorf("%w: negative initial capital", domain.ErrInvalidConfig)
	}
	if req.AccumulationYears < 0 || req.AccumulationYears > req.Years {
		return fmt.Errorf("%w: accumulation years out of range", domain.ErrInvalidConfig)
	}
	if req.InflationRate < 0 {
		return fmt.Errorf("%w: negative inflation rate", domain.ErrInvalidConfig)
	}
	return nil
}

// generateReturns produces the full [year][asset] return grid up front
// so a run consumes exactly one generator sequence.
func (e *Engine) generateReturns(gen *returns.Generator, req Request, enabled []domain.AssetClassConfig) ([][]float64, error) {
	n := len(enabled)
	policy := req.Config.Simulation

	if policy.RandomReturns && policy.UseCorrelation && n > 1 {
		return gen.Correlated(enabled, req.Config.Correlation, req.Years)
	}

	out := make([][]float64, req.Years)
	if policy.RandomReturns {
		// Single-asset random mode: the portfolio moves as one synthetic
		// asset with its weighted mean and volatility.
		mean, vol := portfolioMoments(enabled, req.Config.Correlation)
		seq := gen.Normal(mean, vol, req.Years)
		for p := range out {
			row := make([]float64, n)
			for j := range row {
				row[j] = seq[p]
			}
			out[p] = row
		}
		return out, nil
	}

	for p := range out {
		row := make([]float64, n)
		for j, a := range enabled {
			row[j] = a.ExpectedReturn
		}
		out[p] = row
	}
	return out, nil
}

// exposureFor computes the volatility-target scaling for risky lots.
func (e *Engine) exposureFor(cfg domain.PortfolioConfig, lots []lot) float64 {
	vt := cfg.VolTarget
	if !vt.Enabled {
		return 1.0
	}
	total := totalValue(lots)
	if total <= 0 {
		return 1.0
	}
	var vol float64
	for i := range lots {
		for j := range lots {
			wi := lots[i].value / total
			wj := lots[j].value / total
			vol += wi * wj * lots[i].class.Cfg.Volatility * lots[j].class.Cfg.Volatility *
				cfg.Correlation.At(lots[i].class.Class, lots[j].class.Class)
		}
	}
	vol = math.Sqrt(math.Max(vol, 0))
	if vol <= 0 {
		return 1.0
	}
	exposure := vt.TargetVolatility / vol
	if exposure < vt.MinExposure {
		exposure = vt.MinExposure
	}
	if exposure > vt.MaxExposure {
		exposure = vt.MaxExposure
	}
	return exposure
}

// applyVorabpauschale runs the tax engine per lot and aggregates the
// breakdown into one portfolio-level detail record for display.
func (e *Engine) applyVorabpauschale(
	year int,
	taxCfg domain.TaxConfig,
	lots []lot,
	openings, gains []float64,
	allowance *tax.AllowanceTracker,
) (*domain.VorabpauschaleDetails, float64, error) {
	basiszins := domain.BasiszinsForYear(year)

	agg := domain.VorabpauschaleDetails{Year: year, Basiszins: basiszins}
	var totalTax float64
	for j := range lots {
		details, err := tax.ComputeVorabpauschale(tax.Input{
			Year:           year,
			OpeningCapital: math.Max(openings[j], 0),
			GainInYear:     gains[j],
			Basiszins:      basiszins,
			MonthsHeld:     12,
		}, taxCfg, allowance)
		if err != nil {
			return nil, 0, err
		}
		agg.Basisertrag += details.Basisertrag
		agg.Jahresgewinn += details.Jahresgewinn
		agg.VorabpauschaleAmount += details.VorabpauschaleAmount
		agg.TaxableBase += details.TaxableBase
		agg.SteuerVorFreibetrag += details.SteuerVorFreibetrag
		agg.GenutzterFreibetrag += details.GenutzterFreibetrag
		agg.Steuer += details.Steuer
		agg.AppliedTaxRate = details.AppliedTaxRate
		agg.GuenstigerPruefungResult = details.GuenstigerPruefungResult
		totalTax += details.Steuer
	}
	return &agg, totalTax, nil
}

// maybeRebalance checks the triggers and executes the trade plan.
func (e *Engine) maybeRebalance(
	year int,
	req Request,
	lots []lot,
	targets map[domain.AssetClass]float64,
	monthsSinceRebalance int,
	allowance *tax.AllowanceTracker,
) *domain.RebalancingEvent {
	holdings := make(map[domain.AssetClass]rebalancing.Holding, len(lots))
	for _, l := range lots {
		holdings[l.class.Class] = rebalancing.Holding{Value: l.value, CostBasis: l.basis}
	}

	trig := e.planner.Checker().Check(req.Config.Rebalancing, monthsSinceRebalance, rebalancing.Weights(holdings), targets)
	if !trig.ShouldRebalance {
		return nil
	}

	event := e.planner.Plan(year, trig, holdings, targets,
		req.Config.Costs, req.Config.Rebalancing.CostBenefitThreshold, req.Tax, allowance)
	if event == nil {
		return nil
	}

	for _, leg := range event.Legs {
		for j := range lots {
			if lots[j].class.Class != leg.Class {
				continue
			}
			if leg.Delta < 0 && lots[j].value > 0 {
				soldFraction := -leg.Delta / lots[j].value
				lots[j].basis *= 1 - soldFraction
			} else {
				lots[j].basis += leg.Delta
			}
			lots[j].value += leg.Delta
		}
	}
	deductProRata(lots, event.TransactionCost+event.TaxConsequence)
	return event
}

func (e *Engine) fail(result *Result, year int, err error) {
	result.Failed = true
	result.FailureYear = year
	result.FailureReason = err.Error()
	e.log.Error().Err(err).Int("year", year).Msg("Simulation aborted")
}

func totalValue(lots []lot) float64 {
	var total float64
	for _, l := range lots {
		total += l.value
	}
	return total
}

// applyContribution buys into each lot proportionally to its target
// allocation.
func applyContribution(lots []lot, amount float64) {
	if amount <= 0 {
		return
	}
	for j := range lots {
		share := amount * lots[j].class.Cfg.TargetAllocation
		lots[j].value += share
		lots[j].basis += share
	}
}

// applyWithdrawal sells proportionally to current weights, realizing
// gains; the resulting tax is deducted pro rata and returned.
func applyWithdrawal(lots []lot, amount float64, year int, taxCfg domain.TaxConfig, allowance *tax.AllowanceTracker) float64 {
	total := totalValue(lots)
	if amount <= 0 || total <= 0 {
		return 0
	}
	var realized float64
	for j := range lots {
		sell := amount * lots[j].value / total
		if sell <= 0 || lots[j].value <= 0 {
			continue
		}
		fraction := sell / lots[j].value
		realized += sell - fraction*lots[j].basis
		lots[j].basis *= 1 - fraction
		lots[j].value -= sell
	}
	liability := tax.TaxOnRealizedGain(year, realized, taxCfg, allowance)
	deductProRata(lots, liability)
	return liability
}

// deductProRata removes an amount (tax, costs) from the lots in
// proportion to their values.
func deductProRata(lots []lot, amount float64) {
	total := totalValue(lots)
	if amount <= 0 || total <= 0 {
		return
	}
	for j := range lots {
		lots[j].value -= amount * lots[j].value / total
	}
}

// portfolioMoments returns the weighted expected return and volatility
// of the enabled assets.
func portfolioMoments(assets []domain.AssetClassConfig, corr domain.CorrelationMatrix) (float64, float64) {
	var mean, variance float64
	for i, a := range assets {
		mean += a.TargetAllocation * a.ExpectedReturn
		for j, b := range assets {
			variance += a.TargetAllocation * b.TargetAllocation *
				a.Volatility * b.Volatility * corr.At(assets[i].Class, assets[j].Class)
		}
	}
	return mean, math.Sqrt(math.Max(variance, 0))
}
