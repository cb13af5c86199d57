// Package handlers exposes the rebalancing planner over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/rebalancing"
	"github.com/rhenning/finanzplaner/internal/modules/tax"
)

// Handler handles HTTP requests for the rebalancing module.
type Handler struct {
	planner *rebalancing.Planner
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler.
func NewHandler(planner *rebalancing.Planner, log zerolog.Logger) *Handler {
	return &Handler{
		planner: planner,
		log:     log.With().Str("component", "rebalancing_handler").Logger(),
	}
}

// CheckRequest evaluates the rebalancing triggers for a snapshot.
type CheckRequest struct {
	Policy          domain.RebalancingPolicy      `json:"policy"`
	MonthsSinceLast int                           `json:"months_since_last"`
	Actual          map[domain.AssetClass]float64 `json:"actual"`
	Target          map[domain.AssetClass]float64 `json:"target"`
}

// PlanRequest produces a trade plan for a snapshot of holdings. Omitted
// tax config falls back to the equity-fund defaults.
type PlanRequest struct {
	Year                 int                                       `json:"year"`
	Policy               domain.RebalancingPolicy                  `json:"policy"`
	MonthsSinceLast      int                                       `json:"months_since_last"`
	Holdings             map[domain.AssetClass]rebalancing.Holding `json:"holdings"`
	Target               map[domain.AssetClass]float64             `json:"target"`
	Costs                domain.TransactionCostPolicy              `json:"costs"`
	CostBenefitThreshold float64                                   `json:"cost_benefit_threshold"`
	Tax                  *domain.TaxConfig                         `json:"tax,omitempty"`
}

// PlanResponse carries the trigger decision and the resulting event.
// Event is nil when no rebalance should execute.
type PlanResponse struct {
	Trigger rebalancing.TriggerResult `json:"trigger"`
	Event   *domain.RebalancingEvent  `json:"event,omitempty"`
}

// HandleCheck handles POST /api/rebalancing/check.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.planner.Checker().Check(req.Policy, req.MonthsSinceLast, req.Actual, req.Target)
	h.writeJSON(w, http.StatusOK, result)
}

// HandlePlan handles POST /api/rebalancing/plan - checks the triggers
// and, when due, plans the trades with their tax consequences.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Holdings) == 0 {
		h.writeError(w, http.StatusBadRequest, "No holdings to plan for")
		return
	}

	taxCfg := domain.DefaultTaxConfig()
	if req.Tax != nil {
		taxCfg = *req.Tax
	}
	if err := taxCfg.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trigger := h.planner.Checker().Check(req.Policy, req.MonthsSinceLast, rebalancing.Weights(req.Holdings), req.Target)
	resp := PlanResponse{Trigger: trigger}
	if trigger.ShouldRebalance {
		resp.Event = h.planner.Plan(
			req.Year, trigger, req.Holdings, req.Target,
			req.Costs, req.CostBenefitThreshold,
			taxCfg, tax.NewAllowanceTracker(taxCfg),
		)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleMinTradeAmount handles GET /api/rebalancing/min-trade-amount.
// Cost parameters default to the standard broker policy and can be
// overridden per query parameter.
func (h *Handler) HandleMinTradeAmount(w http.ResponseWriter, r *http.Request) {
	defaults := domain.DefaultPortfolioConfig().Costs
	fixedCost := queryFloat(r, "fixed_cost", defaults.FixedCost)
	percentCost := queryFloat(r, "percent_cost", defaults.PercentCost)
	maxCostRatio := queryFloat(r, "max_cost_ratio", 0.01)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"min_trade_amount": rebalancing.MinTradeAmount(fixedCost, percentCost, maxCostRatio),
		"fixed_cost":       fixedCost,
		"percent_cost":     percentCost,
		"max_cost_ratio":   maxCostRatio,
	})
}

func queryFloat(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return val
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
